// Package telegram validates bot tokens against the Telegram Bot API
// before they are stored.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/mymmrac/telego"
	"golang.org/x/time/rate"
)

var (
	// ErrInvalidFormat means the token does not even look like a bot
	// token; no network call is made.
	ErrInvalidFormat = errors.New("invalid_token_format")
	// ErrNotOK means Telegram answered but rejected the token.
	ErrNotOK = errors.New("telegram_not_ok")
)

// Common bot token shape: <digits>:<35-ish chars>.
var tokenShape = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]{10,}$`)

// LooksLikeToken reports whether the string has the bot token shape.
func LooksLikeToken(token string) bool {
	return tokenShape.MatchString(token)
}

// Validator checks tokens via getMe. Calls are rate limited so a UI
// retry loop cannot hammer the Bot API.
type Validator struct {
	apiServer string
	limiter   *rate.Limiter
}

type Option func(*Validator)

// WithAPIServer points the validator at a different Bot API server
// (tests).
func WithAPIServer(url string) Option {
	return func(v *Validator) { v.apiServer = url }
}

func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate confirms the token with getMe and returns the bot's
// account label, preferring "@username" over the first name.
func (v *Validator) Validate(ctx context.Context, token string) (string, error) {
	if !LooksLikeToken(token) {
		return "", ErrInvalidFormat
	}
	if err := v.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("telegram_rate_limited: %w", err)
	}

	var botOpts []telego.BotOption
	if v.apiServer != "" {
		botOpts = append(botOpts, telego.WithAPIServer(v.apiServer))
	}
	bot, err := telego.NewBot(token, botOpts...)
	if err != nil {
		return "", ErrInvalidFormat
	}

	me, err := bot.GetMe(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotOK, err)
	}

	switch {
	case me.Username != "":
		return "@" + me.Username, nil
	case me.FirstName != "":
		return me.FirstName, nil
	}
	return "", nil
}
