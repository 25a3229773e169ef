package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TimeToExpression converts a wall-clock time plus a weekday set (0=Sunday)
// into a 5-field cron expression. An empty day set means every day. The full
// week collapses to "*"; anything else becomes a sorted, de-duplicated comma
// list. Days are normalized modulo 7, matching the upstream app's convention
// that 7 is Sunday again.
func TimeToExpression(hour, minute int, days ...int) (string, error) {
	if hour < 0 || hour > 23 {
		return "", fmt.Errorf("%w: hour %d outside [0,23]", ErrInvalidArgument, hour)
	}
	if minute < 0 || minute > 59 {
		return "", fmt.Errorf("%w: minute %d outside [0,59]", ErrInvalidArgument, minute)
	}

	dow := "*"
	if len(days) > 0 {
		seen := make(map[int]struct{}, 7)
		for _, d := range days {
			seen[((d%7)+7)%7] = struct{}{}
		}
		if len(seen) < 7 {
			uniq := make([]int, 0, len(seen))
			for d := range seen {
				uniq = append(uniq, d)
			}
			sort.Ints(uniq)
			parts := make([]string, len(uniq))
			for i, d := range uniq {
				parts[i] = strconv.Itoa(d)
			}
			dow = strings.Join(parts, ",")
		}
	}

	return fmt.Sprintf("%d %d * * %s", minute, hour, dow), nil
}
