package api

import (
	"time"
)

const (
	// TypeCase is a case interview
	TypeCase = "case"
	// TypeBehavioral is a behavioral interview
	TypeBehavioral = "behavioral"
	// CategoryBehavioral is the only category of behavioral type
	CategoryBehavioral = "behavioral"

	// DefaultMaxDuration is used when the request has none
	DefaultMaxDuration = 15 * time.Minute
)

// DurationOptions lists allowed interview lengths in minutes per interview type
var DurationOptions = map[string][]int{
	TypeCase:       {10, 15, 30},
	TypeBehavioral: {2, 5},
}

var defaultMinutes = map[string]int{TypeCase: 15, TypeBehavioral: 2}

// InterviewType returns the type of the category
func InterviewType(category string) string {
	if category == CategoryBehavioral {
		return TypeBehavioral
	}
	return TypeCase
}

// NormalizeMinutes returns minutes if they are allowed for the interview type,
// otherwise the type's default
func NormalizeMinutes(interviewType string, minutes int) int {
	opts, ok := DurationOptions[interviewType]
	if !ok {
		interviewType = TypeCase
		opts = DurationOptions[TypeCase]
	}
	for _, o := range opts {
		if o == minutes {
			return minutes
		}
	}
	return defaultMinutes[interviewType]
}
