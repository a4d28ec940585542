package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/render"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/room"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/status"
	"github.com/airenas/go-app/pkg/goapp"
)

type roomAPI interface {
	Start() error
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error
	CancelRecording()
	CompleteTurn(ctx context.Context, transcript string) error
	Finish(ctx context.Context) (*api.Results, error)
	WatchDeadline(ctx context.Context) error
	Snapshot() room.Snapshot
}

type statusWatcher interface {
	HookToStatus(ctx context.Context, audioID string) (<-chan api.AudioStatus, func(), error)
}

const helpText = `Commands:
  start            start the interview clock
  rec              start recording an answer
  stop             stop recording, transcribe and send the answer
  cancel           drop the current recording
  say <text>       send a typed answer
  finish           end the interview and wait for results
  results          show results
  status           show the room state
  transcript       show the conversation
  save [file]      write the transcript to a file
  export [file]    write results as json
  watch <audio_id> follow audio job status pushes
  help             show this text
  quit             leave the room
`

type shell struct {
	room         roomAPI
	watcher      statusWatcher
	printer      *render.Printer
	out          io.Writer
	saveFile     string
	exportFile   string
	watchTimeout time.Duration

	deadlineOnce sync.Once
	wg           sync.WaitGroup
}

func parseCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	cmd, arg, _ := strings.Cut(line, " ")
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}

// run reads commands until quit, EOF or ctx is done
func (s *shell) run(ctx context.Context, in io.Reader) {
	ctx, cf := context.WithCancel(ctx)
	defer func() {
		cf()
		s.wg.Wait()
	}()
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	fmt.Fprint(s.out, "> ")
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok || !s.exec(ctx, line) {
				return
			}
			fmt.Fprint(s.out, "> ")
		}
	}
}

// exec runs one command, returns false on quit
func (s *shell) exec(ctx context.Context, line string) bool {
	cmd, arg := parseCommand(line)
	var err error
	switch cmd {
	case "":
	case "quit", "exit", "q":
		return false
	case "help", "?":
		fmt.Fprint(s.out, helpText)
	case "start":
		if err = s.room.Start(); err == nil {
			s.watchDeadline(ctx)
		}
	case "rec":
		err = s.room.StartRecording(ctx)
	case "stop":
		err = s.room.StopRecording(ctx)
	case "cancel":
		s.room.CancelRecording()
	case "say":
		if arg == "" {
			fmt.Fprintln(s.out, "usage: say <text>")
			break
		}
		err = s.room.CompleteTurn(ctx, arg)
	case "finish":
		_, err = s.room.Finish(ctx)
	case "results":
		s.printer.Results(s.room.Snapshot().Results)
	case "status":
		s.printer.Status(s.room.Snapshot())
	case "transcript":
		s.printer.Transcript(s.room.Snapshot().Messages)
	case "save":
		err = s.save(firstNonEmpty(arg, s.saveFile), func(w io.Writer) error {
			return render.WriteTranscript(w, s.room.Snapshot().Messages)
		})
	case "export":
		res := s.room.Snapshot().Results
		if res == nil {
			s.printer.Results(nil)
			break
		}
		err = s.save(firstNonEmpty(arg, s.exportFile), func(w io.Writer) error {
			return render.WriteJSON(w, res)
		})
	case "watch":
		if arg == "" {
			fmt.Fprintln(s.out, "usage: watch <audio_id>")
			break
		}
		err = s.watch(ctx, arg)
	default:
		fmt.Fprintf(s.out, "unknown command '%s', type help\n", cmd)
	}
	if err != nil {
		s.report(err)
	}
	return true
}

func (s *shell) report(err error) {
	goapp.Log.Debug().Err(err).Msg("command failed")
	if errors.Is(err, room.ErrWrongState) {
		fmt.Fprintf(s.out, "Not now, the room is %s.\n", s.room.Snapshot().State)
		return
	}
	s.printer.Error(err)
}

func (s *shell) watchDeadline(ctx context.Context) {
	s.deadlineOnce.Do(func() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.room.WatchDeadline(ctx); err != nil && ctx.Err() == nil {
				goapp.Log.Warn().Err(err).Msg("deadline finish")
			}
		}()
	})
}

func (s *shell) save(file string, write func(io.Writer) error) error {
	if file == "" {
		return errors.New("no file")
	}
	f, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("can't create %s: %w", file, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("can't close %s: %w", file, err)
	}
	fmt.Fprintf(s.out, "Saved %s\n", file)
	return nil
}

func (s *shell) watch(ctx context.Context, audioID string) error {
	if s.watchTimeout > 0 {
		var cf context.CancelFunc
		ctx, cf = context.WithTimeout(ctx, s.watchTimeout)
		defer cf()
	}
	ch, closeFunc, err := s.watcher.HookToStatus(ctx, audioID)
	if err != nil {
		return fmt.Errorf("%w: %w", api.ErrServerUnavailable, err)
	}
	defer closeFunc()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out, "Stopped watching.")
			return nil
		case st, ok := <-ch:
			if !ok {
				return nil
			}
			fmt.Fprintf(s.out, "%s: %s\n", st.AudioID, st.Status)
			if status.From(st.Status).Final() {
				if st.Transcript != "" {
					fmt.Fprintf(s.out, "Transcript: %s\n", st.Transcript)
				}
				return nil
			}
		}
	}
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if s != "" {
			return s
		}
	}
	return ""
}

// view prints room changes: new messages and the status line
type view struct {
	printer *render.Printer

	lock       sync.Mutex
	printed    int
	statusText string
	ready      bool
}

func (v *view) update(s room.Snapshot) {
	v.lock.Lock()
	defer v.lock.Unlock()
	if v.printed > len(s.Messages) {
		v.printed = 0
	}
	for _, m := range s.Messages[v.printed:] {
		v.printer.Message(m)
	}
	v.printed = len(s.Messages)
	if s.StatusText != v.statusText {
		v.statusText = s.StatusText
		if s.StatusText != "" {
			v.printer.Status(s)
		}
	}
	if s.ResultsReady && !v.ready {
		v.ready = true
		v.printer.Results(s.Results)
	}
}
