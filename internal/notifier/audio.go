package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"backoffice/internal/util"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Sounds known to a Player
const (
	SoundAlert   = "alert"
	SoundConfirm = "confirm"
)

// DefaultAlertTimeout bounds how long an unanswered alert keeps ringing
const DefaultAlertTimeout = 30 * time.Second

// ErrAudioBlocked means the admin has not enabled audio yet
var ErrAudioBlocked = errors.New("audio is blocked until enabled")

// Player plays sounds on the local machine
type Player interface {
	Play(ctx context.Context, sound string, loop bool) error
	Stop()
}

// AudioManager owns the alert sound: at most one loop plays at a time and
// every loop stops on its own after the timeout.
type AudioManager struct {
	player  Player
	prefs   Preferences
	clock   clock.Clock
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	playing bool
	timer   *clock.Timer
	gen     uint64
}

func NewAudioManager(player Player, prefs Preferences, clk clock.Clock, timeout time.Duration) *AudioManager {
	if clk == nil {
		clk = clock.New()
	}
	if timeout <= 0 {
		timeout = DefaultAlertTimeout
	}
	return &AudioManager{
		player:  player,
		prefs:   prefs,
		clock:   clk,
		timeout: timeout,
		logger:  util.GetLogger(),
	}
}

// Enabled reports the persisted audio flag
func (a *AudioManager) Enabled() bool {
	return a.prefs.AudioEnabled()
}

// Playing reports whether the alert loop is running
func (a *AudioManager) Playing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playing
}

// StartAlert starts the looping alert, replacing any loop already running.
func (a *AudioManager) StartAlert(ctx context.Context) error {
	if !a.prefs.AudioEnabled() {
		return ErrAudioBlocked
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopLocked()
	if err := a.player.Play(ctx, SoundAlert, true); err != nil {
		return fmt.Errorf("failed to play alert: %w", err)
	}

	a.playing = true
	a.gen++
	gen := a.gen
	a.timer = a.clock.AfterFunc(a.timeout, func() { a.expire(gen) })
	return nil
}

func (a *AudioManager) expire(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.playing || a.gen != gen {
		return
	}
	a.player.Stop()
	a.playing = false
	a.timer = nil
	a.logger.Info("Alert audio auto-stopped", zap.Duration("after", a.timeout))
}

// StopAlert stops the loop if one is playing
func (a *AudioManager) StopAlert() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

func (a *AudioManager) stopLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if a.playing {
		a.player.Stop()
		a.playing = false
	}
}

// Unlock plays the confirmation tone and, once that works, persists the
// enabled flag.
func (a *AudioManager) Unlock(ctx context.Context) error {
	a.mu.Lock()
	err := a.player.Play(ctx, SoundConfirm, false)
	a.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to play confirmation tone: %w", err)
	}

	if err := a.prefs.SetAudioEnabled(true); err != nil {
		return fmt.Errorf("failed to persist audio preference: %w", err)
	}
	return nil
}
