// Package selector implements the device selection protocol: present the
// active devices (or, on request, every device), then read choices until a
// valid device index or a cancel is entered.
package selector

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/YodaGitMaster/EasyLecture/internal/audio"
)

// State is a step of the selection protocol.
type State string

const (
	StatePresentingActive State = "presenting_active"
	StatePresentingAll    State = "presenting_all"
	StateAwaitingChoice   State = "awaiting_choice"
	StateDone             State = "done"
)

const (
	// CancelAnswer ends the selection without a device.
	CancelAnswer = "q"

	fallbackQuestion = "Do you want to list all available loopback devices and choose one anyway? (y/n): "
	choiceQuestion   = "Enter the device index from the list above (or 'q' to quit): "
)

// ListFunc lazily enumerates every loopback device.
type ListFunc func(ctx context.Context) ([]audio.Device, error)

// Selector drives the selection state machine.
type Selector struct {
	prompter Prompter
	list     ListFunc
	logger   *slog.Logger
}

// New creates a new Selector.
func New(prompter Prompter, list ListFunc, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{prompter: prompter, list: list, logger: logger}
}

// Select runs the protocol. ok is false when the user declined to choose,
// which is a normal outcome and not an error. err is only set when the
// prompter or the device listing fails.
func (s *Selector) Select(ctx context.Context, active []audio.ProbeResult) (id int, ok bool, err error) {
	state := StatePresentingActive
	var choices map[int]struct{}

	for {
		switch state {
		case StatePresentingActive:
			if len(active) == 0 {
				state = StatePresentingAll
				continue
			}
			s.logger.Info("devices with audio activity:")
			choices = make(map[int]struct{}, len(active))
			for _, r := range active {
				s.logger.Info(fmt.Sprintf("Device [%d] %s (RMS: %.2f)", r.DeviceID, r.Name, r.RMS))
				choices[r.DeviceID] = struct{}{}
			}
			state = StateAwaitingChoice

		case StatePresentingAll:
			s.logger.Info("no devices with significant audio activity were detected")
			answer, err := s.prompter.Ask(ctx, fallbackQuestion)
			if err != nil {
				if isEOF(err) {
					return 0, false, nil
				}
				return 0, false, fmt.Errorf("ask fallback: %w", err)
			}
			if normalize(answer) != "y" {
				return 0, false, nil
			}

			devices, err := s.list(ctx)
			if err != nil {
				return 0, false, fmt.Errorf("list devices: %w", err)
			}
			if len(devices) == 0 {
				s.logger.Info("no loopback devices found")
				return 0, false, nil
			}
			s.logger.Info("available loopback devices:")
			choices = make(map[int]struct{}, len(devices))
			for _, d := range devices {
				s.logger.Info(fmt.Sprintf("Device [%d] %s", d.ID, d.Name))
				choices[d.ID] = struct{}{}
			}
			state = StateAwaitingChoice

		case StateAwaitingChoice:
			answer, err := s.prompter.Ask(ctx, choiceQuestion)
			if err != nil {
				if isEOF(err) {
					return 0, false, nil
				}
				return 0, false, fmt.Errorf("ask device: %w", err)
			}
			if normalize(answer) == CancelAnswer {
				state = StateDone
				continue
			}

			sel, err := strconv.Atoi(strings.TrimSpace(answer))
			if err != nil {
				s.logger.Info("invalid input, please enter a numeric device index")
				continue
			}
			if _, found := choices[sel]; !found {
				s.logger.Info("invalid device index, please enter one of the indices shown above")
				continue
			}
			s.logger.Info("device selected", slog.Int("device", sel))
			return sel, true, nil

		case StateDone:
			return 0, false, nil
		}
	}
}
