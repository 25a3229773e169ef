package arbox

// Upstream JSON shapes. Only the fields the daemon consumes are declared;
// unknown fields are ignored by the decoder.

// UserProfile is the account identity returned by login and /user/profile.
type UserProfile struct {
	ID           int    `json:"id"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	FullName     string `json:"full_name"`
	Language     string `json:"language"`
	Image        string `json:"image"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type loginResponse struct {
	Data UserProfile `json:"data"`
}

type profileResponse struct {
	Data UserProfile `json:"data"`
}

// ScheduleResponse is the payload of POST /schedule/betweenDates.
type ScheduleResponse struct {
	Data []ClassSchedule `json:"data"`
}

// ClassSchedule is one bookable slot in the schedule window.
type ClassSchedule struct {
	ID            int            `json:"id"`
	Time          string         `json:"time"`
	EndTime       string         `json:"end_time"`
	Date          string         `json:"date"`
	MaxUsers      int            `json:"max_users"`
	Status        string         `json:"status"`
	Free          int            `json:"free"`
	Registered    int            `json:"registered"`
	UserBooked    int            `json:"user_booked"`
	StandBy       int            `json:"stand_by"`
	BookingOption string         `json:"booking_option"`
	DayOfWeek     int            `json:"day_of_week"`
	BookedUsers   []ScheduleUser `json:"booked_users"`
}

// ScheduleUser is a registrant on a class.
type ScheduleUser struct {
	ID               int    `json:"id"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	FullName         string `json:"full_name"`
	MembershipUserFK int    `json:"membership_user_fk"`
}

type scheduleBetweenDatesRequest struct {
	From           string `json:"from"`
	To             string `json:"to"`
	LocationsBoxID int    `json:"locations_box_id"`
	BoxesID        int    `json:"boxes_id"`
}

type signToClassRequest struct {
	ScheduleID       int `json:"schedule_id"`
	MembershipUserID int `json:"membership_user_id"`
}
