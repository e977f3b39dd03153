package policy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/oralflow/oralflow/services/clinic-service/internal/apperr"
)

func TestDefaultsAreValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestValidateCrossFieldRules(t *testing.T) {
	cases := []struct {
		name  string
		mut   func(*Policy)
		field string
	}{
		{"hasta not below desde", func(p *Policy) { p.ConfirmUntilHours = 24 }, "horas_confirmar_hasta"},
		{"lead not below desde", func(p *Policy) { p.MinLeadHours = 30 }, "min_horas_anticipacion"},
		{"autoconfirm above desde", func(p *Policy) { p.AutoConfirmHours = 25 }, "horas_autoconfirmar"},
		{"zero active", func(p *Policy) { p.MaxActive = 0 }, "max_citas_activas"},
		{"zero per day", func(p *Policy) { p.MaxPerDay = 0 }, "max_citas_dia"},
		{"week below day", func(p *Policy) { p.MaxPerDay = 3; p.MaxPerWeek = 2 }, "max_citas_semana"},
		{"negative cooldown", func(p *Policy) { p.CooldownDays = -1 }, "cooldown_dias"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Defaults()
			tc.mut(&p)
			e, ok := apperr.As(p.Validate())
			if !ok || e.Kind != apperr.KindValidation {
				t.Fatalf("expected validation error, got %v", p.Validate())
			}
			if e.Field(tc.field) == "" {
				t.Fatalf("expected message on %s, got %v", tc.field, e.Fields)
			}
		})
	}
}

func TestAutoConfirmMayEqualDesde(t *testing.T) {
	p := Defaults()
	p.AutoConfirmHours = p.ConfirmFromHours
	if err := p.Validate(); err != nil {
		t.Fatalf("equal values are allowed: %v", err)
	}
}

type fakeStore struct {
	p   Policy
	ok  bool
	err error
}

func (f fakeStore) LoadPolicy(context.Context) (Policy, bool, error) { return f.p, f.ok, f.err }

func TestStoreProvider(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	got, err := NewStoreProvider(fakeStore{}, logger).Current(context.Background())
	if err != nil || got != Defaults() {
		t.Fatalf("missing row must yield defaults, got %+v %v", got, err)
	}

	custom := Defaults()
	custom.MaxPerDay = 2
	got, err = NewStoreProvider(fakeStore{p: custom, ok: true}, logger).Current(context.Background())
	if err != nil || got.MaxPerDay != 2 {
		t.Fatalf("expected stored policy, got %+v %v", got, err)
	}

	boom := errors.New("db down")
	if _, err := NewStoreProvider(fakeStore{err: boom}, logger).Current(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestStaticProvider(t *testing.T) {
	p := Defaults()
	p.CooldownDays = 0
	got, _ := NewStaticProvider(p).Current(context.Background())
	if got.CooldownDays != 0 {
		t.Fatalf("unexpected %+v", got)
	}
}
