package apperr

import (
	"fmt"
	"net/http"
	"testing"
)

func TestKindsMapToHTTP(t *testing.T) {
	cases := map[Kind]int{
		KindValidation: http.StatusBadRequest,
		KindConflict:   http.StatusConflict,
		KindTransition: http.StatusConflict,
		KindForbidden:  http.StatusForbidden,
		KindNotFound:   http.StatusNotFound,
	}
	for kind, want := range cases {
		if got := kind.HTTPStatus(); got != want {
			t.Fatalf("%s: expected %d, got %d", kind, want, got)
		}
	}
}

func TestAsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("confirm: %w", Transition("cancelada", "no se puede confirmar una cita cancelada"))
	e, ok := As(err)
	if !ok || e.Kind != KindTransition {
		t.Fatalf("expected transition error, got %v", err)
	}
	body := e.Body()
	if body["estado"] != "cancelada" || body["detail"] == "" {
		t.Fatalf("unexpected body %v", body)
	}
	if !IsKind(err, KindTransition) || IsKind(err, KindConflict) {
		t.Fatal("IsKind mismatch")
	}
}

func TestMergeKeepsFirstMessagePerField(t *testing.T) {
	merged := Merge(Validation("hora", "a"), nil, Validation("hora", "b"), Validation("fecha", "c"))
	if merged.Field("hora") != "a" || merged.Field("fecha") != "c" {
		t.Fatalf("unexpected merge %+v", merged)
	}
	if Merge() != nil {
		t.Fatal("merging nothing must be nil")
	}
}
