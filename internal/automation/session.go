package automation

import (
	"context"

	"github.com/testsquadco/mailauto/internal/driver"
)

// Session is the slice of the WebDriver surface the flow drives. The
// concrete implementation comes from the driver package; tests substitute
// a scripted fake.
type Session interface {
	Delete(ctx context.Context) error
	FindElement(ctx context.Context, by, value string) (Element, error)
	Source(ctx context.Context) (string, error)
	CurrentPackage(ctx context.Context) (string, error)
	ActivateApp(ctx context.Context, pkg string) error
	StartActivity(ctx context.Context, pkg, activity string) error
	Tap(ctx context.Context, x, y int) error
}

// Element is the element surface the flow uses.
type Element interface {
	Click(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
	Clear(ctx context.Context) error
	Text(ctx context.Context) (string, error)
	Displayed(ctx context.Context) (bool, error)
	GetRect(ctx context.Context) (driver.Rect, error)
}

// driverSession adapts *driver.Session to the Session interface.
type driverSession struct {
	s *driver.Session
}

// WrapSession adapts a concrete WebDriver session for the flow.
func WrapSession(s *driver.Session) Session { return driverSession{s: s} }

func (d driverSession) Delete(ctx context.Context) error { return d.s.Delete(ctx) }

func (d driverSession) FindElement(ctx context.Context, by, value string) (Element, error) {
	el, err := d.s.FindElement(ctx, by, value)
	if err != nil {
		return nil, err
	}
	return el, nil
}

func (d driverSession) Source(ctx context.Context) (string, error) { return d.s.Source(ctx) }

func (d driverSession) CurrentPackage(ctx context.Context) (string, error) {
	return d.s.CurrentPackage(ctx)
}

func (d driverSession) ActivateApp(ctx context.Context, pkg string) error {
	return d.s.ActivateApp(ctx, pkg)
}

func (d driverSession) StartActivity(ctx context.Context, pkg, activity string) error {
	return d.s.StartActivity(ctx, pkg, activity)
}

func (d driverSession) Tap(ctx context.Context, x, y int) error { return d.s.Tap(ctx, x, y) }
