package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/room"
	"github.com/airenas/go-app/pkg/goapp"
)

type interviewStarter interface {
	StartInterview(ctx context.Context, sessionID string, in *api.InterviewRequest) (*api.Interview, error)
	GetInterview(ctx context.Context, interviewID string) (*api.Interview, error)
}

// loadSession reads a saved session, a missing file is not an error
func loadSession(file string) (*api.Session, error) {
	if file == "" {
		return nil, nil
	}
	b, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("can't read %s: %w", file, err)
	}
	var res api.Session
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, fmt.Errorf("can't decode %s: %w", file, err)
	}
	return &res, nil
}

func saveSession(file string, s *api.Session) error {
	if file == "" || s == nil {
		return nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("can't encode session: %w", err)
	}
	if err := os.WriteFile(file, b, 0600); err != nil {
		return fmt.Errorf("can't write %s: %w", file, err)
	}
	return nil
}

// openSession restores the saved session or creates a new one
func openSession(ctx context.Context, keeper *room.SessionKeeper, file string) (*api.Session, error) {
	saved, err := loadSession(file)
	if err != nil {
		goapp.Log.Warn().Err(err).Msg("drop saved session")
	}
	if keeper.Restore(saved) {
		goapp.Log.Info().Str("ID", saved.SessionID).Msg("session restored")
	}
	res, err := keeper.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := saveSession(file, res); err != nil {
		goapp.Log.Warn().Err(err).Msg("can't save session")
	}
	return res, nil
}

// openInterview loads the interview by id or starts a new one in the session
func openInterview(ctx context.Context, cl interviewStarter, sessionID, interviewID, category string, minutes int) (*api.Interview, error) {
	if interviewID != "" {
		return cl.GetInterview(ctx, interviewID)
	}
	if category == "" {
		category = api.CategoryBehavioral
	}
	in := &api.InterviewRequest{Category: category, Type: api.InterviewType(category)}
	if minutes > 0 {
		in.MaxDurationSeconds = api.NormalizeMinutes(in.Type, minutes) * 60
	}
	return cl.StartInterview(ctx, sessionID, in)
}
