package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Config struct {
	Arbox   ArboxConfig   `json:"arbox"`
	Booking BookingConfig `json:"booking"`

	// Scheduler controls trigger behavior (timezone for cron evaluation).
	Scheduler SchedulerConfig `json:"scheduler"`

	Logging  LoggingConfig   `json:"logging"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
}

// ArboxConfig holds the upstream account and tenant settings.
type ArboxConfig struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Whitelabel string `json:"whitelabel"`

	// BaseURL overrides the production API origin (tests, staging).
	BaseURL string `json:"base_url,omitempty"`

	LocationsBoxID   int `json:"locations_box_id"`
	BoxesID          int `json:"boxes_id"`
	MembershipUserID int `json:"membership_user_id,omitempty"`

	// RequestTimeout is a Go duration string (e.g. "10s"). Default "15s".
	RequestTimeout string `json:"request_timeout,omitempty"`

	// RatePerSec caps outgoing API calls. Default 2.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// BookingConfig describes which class to chase and when to look.
type BookingConfig struct {
	// Cron is a 5-field expression evaluated in the scheduler timezone.
	// Default: "0 8 * * 0-4" (8 AM on a Sunday-first work week).
	Cron string `json:"cron,omitempty"`

	// ClassTime is the target class start time as "HH:MM".
	ClassTime string `json:"class_time"`

	// DaysFromNow controls how far ahead to search for the class.
	DaysFromNow int `json:"days_from_now"`

	// AutoBook submits the signup when a free spot is found.
	// When false the task only reports availability.
	AutoBook bool `json:"auto_book,omitempty"`
}

type SchedulerConfig struct {
	// Timezone is an IANA name, e.g. "Asia/Jerusalem" (the default).
	Timezone string `json:"timezone,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// TelegramConfig enables the outbound notifier (booking outcomes + log sink).
type TelegramConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
}

// StorageConfig controls the optional attempt journal.
//
// Driver values: "none" (or empty) disables it, "sqlite" writes a database file.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

const (
	DefaultCron     = "0 8 * * 0-4"
	DefaultTimezone = "Asia/Jerusalem"
)

// Normalize fills defaults in place.
func (c *Config) Normalize() {
	if strings.TrimSpace(c.Booking.Cron) == "" {
		c.Booking.Cron = DefaultCron
	}
	if strings.TrimSpace(c.Scheduler.Timezone) == "" {
		c.Scheduler.Timezone = DefaultTimezone
	}
	if c.Arbox.RatePerSec <= 0 {
		c.Arbox.RatePerSec = 2
	}
}

// Validate reports the first structural problem. It does not touch the network.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Arbox.Email) == "" {
		return errors.New("arbox.email is required")
	}
	if c.Arbox.Password == "" {
		return errors.New("arbox.password is required")
	}
	if strings.TrimSpace(c.Arbox.Whitelabel) == "" {
		return errors.New("arbox.whitelabel is required")
	}
	if c.Arbox.LocationsBoxID <= 0 {
		return errors.New("arbox.locations_box_id is required")
	}
	if c.Arbox.BoxesID <= 0 {
		return errors.New("arbox.boxes_id is required")
	}
	if _, err := ParseDurationField("arbox.request_timeout", c.Arbox.RequestTimeout); err != nil {
		return err
	}
	if err := validateHHMM(c.Booking.ClassTime); err != nil {
		return fmt.Errorf("booking.class_time: %w", err)
	}
	if c.Booking.DaysFromNow < 0 {
		return errors.New("booking.days_from_now must be >= 0")
	}
	if c.Booking.AutoBook && c.Arbox.MembershipUserID <= 0 {
		return errors.New("arbox.membership_user_id is required when booking.auto_book is set")
	}
	if c.Telegram != nil {
		if strings.TrimSpace(c.Telegram.Token) == "" {
			return errors.New("telegram.token is required when the telegram section is present")
		}
		if c.Telegram.ChatID == 0 {
			return errors.New("telegram.chat_id is required when the telegram section is present")
		}
	}
	if c.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}

func validateHHMM(s string) error {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return fmt.Errorf("invalid minute in %q", s)
	}
	return nil
}
