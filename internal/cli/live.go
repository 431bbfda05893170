package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"trading-terminal-go/internal/guard"
	"trading-terminal-go/internal/query"
	"trading-terminal-go/internal/views"
)

const clearScreen = "\033[H\033[2J"

// screen redraws a live view with the current notices on top.
type screen struct {
	mu     sync.Mutex
	out    io.Writer
	notice *views.Notices
	frame  func() string
}

func (s *screen) redraw() {
	s.mu.Lock()
	defer s.mu.Unlock()
	frame := s.frame()
	if notices := views.RenderNotices(s.notice); notices != "" {
		frame = notices + "\n" + frame
	}
	fmt.Fprint(s.out, clearScreen+frame+"\n")
}

// listen reads one command per line while a live view runs: "d" dismisses
// the service banner and "q" quits. It returns at EOF or after quitting.
func (a *App) listen(in io.Reader, redraw, quit func()) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "d", "dismiss":
			a.notices.Dismiss()
			redraw()
		case "q", "quit":
			quit()
			return
		}
	}
}

// live runs poll until ctx is done, the user quits or the session is lost.
// Losing the session prints the sign-in hint for route.
func (a *App) live(ctx context.Context, in io.Reader, route string, sc *screen, poll func(ctx context.Context)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.router.OnNavigate(func(to string) {
		if !guard.Protected(to) {
			cancel()
		}
	})
	if in != nil {
		go a.listen(in, sc.redraw, cancel)
	}

	poll(ctx)

	if !guard.Protected(a.router.Current()) {
		fmt.Fprintln(a.errOut, views.SignInRequired(route))
		return ErrSignInRequired
	}
	return nil
}

// watch polls a single query on its interval and redraws it after every
// read. render gets the zero value until the first success, and a success
// clears the service banner.
func watch[T any](ctx context.Context, a *App, in io.Reader, route string, q query.Query[T], render func(T) string) error {
	var (
		mu   sync.Mutex
		last T
	)
	sc := &screen{out: a.out, notice: a.notices, frame: func() string {
		mu.Lock()
		defer mu.Unlock()
		return render(last)
	}}

	return a.live(ctx, in, route, sc, func(ctx context.Context) {
		query.Poll(ctx, a.cache, q, func(v T, err error) {
			if err != nil {
				a.logger.Debug("Refresh failed", zap.String("key", q.Key.String()), zap.Error(err))
				sc.redraw()
				return
			}
			a.notices.Recovered()
			mu.Lock()
			last = v
			mu.Unlock()
			sc.redraw()
		})
	})
}
