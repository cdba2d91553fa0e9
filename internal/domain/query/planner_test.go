package query

import (
	"strings"
	"testing"
	"time"
)

// TestBuildPlan_Empty проверяет план без ограничений.
func TestBuildPlan_Empty(t *testing.T) {
	plan, err := BuildPlan(Spec{})
	if err != nil {
		t.Fatalf("BuildPlan() вернул ошибку: %v", err)
	}

	if !plan.Filter.IsEmpty() {
		t.Error("фильтр должен быть пустым для пустого Spec")
	}
	if plan.Limit != DefaultLimit {
		t.Errorf("Limit = %d, ожидался %d", plan.Limit, DefaultLimit)
	}
	if plan.Offset != 0 {
		t.Errorf("Offset = %d, ожидался 0", plan.Offset)
	}
	if plan.Order != OrderAsc {
		t.Errorf("Order = %q, ожидался %q (фиксированная политика)", plan.Order, OrderAsc)
	}
}

// TestBuildPlan_ScalarFields проверяет сборку ограничений из непустых полей.
func TestBuildPlan_ScalarFields(t *testing.T) {
	plan, err := BuildPlan(Spec{
		Service: "Auth",
		Level:   "ERROR",
		UserID:  "user123",
		Action:  "login",
	})
	if err != nil {
		t.Fatalf("BuildPlan() вернул ошибку: %v", err)
	}

	if plan.Filter.Service == nil || *plan.Filter.Service != "Auth" {
		t.Errorf("Filter.Service = %v, ожидался Auth", plan.Filter.Service)
	}
	if plan.Filter.Level == nil || *plan.Filter.Level != "ERROR" {
		t.Errorf("Filter.Level = %v, ожидался ERROR", plan.Filter.Level)
	}
	if plan.Filter.UserID == nil || *plan.Filter.UserID != "user123" {
		t.Errorf("Filter.UserID = %v, ожидался user123", plan.Filter.UserID)
	}
	if plan.Filter.Action == nil || *plan.Filter.Action != "login" {
		t.Errorf("Filter.Action = %v, ожидался login", plan.Filter.Action)
	}
}

// TestBuildPlan_DateRange проверяет разбор границ дат.
func TestBuildPlan_DateRange(t *testing.T) {
	plan, err := BuildPlan(Spec{
		StartDate: "2026-03-01",
		EndDate:   "2026-03-15",
	})
	if err != nil {
		t.Fatalf("BuildPlan() вернул ошибку: %v", err)
	}

	wantSince := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if plan.Filter.Since == nil || !plan.Filter.Since.Equal(wantSince) {
		t.Errorf("Since = %v, ожидался %v (начало дня)", plan.Filter.Since, wantSince)
	}

	// end_date включительно: Before = end_date + 1 день
	wantBefore := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	if plan.Filter.Before == nil || !plan.Filter.Before.Equal(wantBefore) {
		t.Errorf("Before = %v, ожидался %v (end_date + 1 день)", plan.Filter.Before, wantBefore)
	}
}

// TestBuildPlan_MalformedStartDate проверяет ошибку с указанием границы.
func TestBuildPlan_MalformedStartDate(t *testing.T) {
	_, err := BuildPlan(Spec{StartDate: "15.03.2026"})
	if err == nil {
		t.Fatal("ожидалась ошибка для некорректной start_date")
	}
	if !strings.Contains(err.Error(), "start_date") {
		t.Errorf("ошибка %q не называет границу start_date", err.Error())
	}
}

// TestBuildPlan_MalformedEndDate проверяет ошибку с указанием границы.
func TestBuildPlan_MalformedEndDate(t *testing.T) {
	_, err := BuildPlan(Spec{StartDate: "2026-03-01", EndDate: "not-a-date"})
	if err == nil {
		t.Fatal("ожидалась ошибка для некорректной end_date")
	}
	if !strings.Contains(err.Error(), "end_date") {
		t.Errorf("ошибка %q не называет границу end_date", err.Error())
	}
}

// TestClampLimit проверяет нормализацию размера страницы в [0, MaxLimit].
func TestClampLimit(t *testing.T) {
	intPtr := func(n int) *int { return &n }

	cases := []struct {
		in   *int
		want int
	}{
		{nil, DefaultLimit},
		{intPtr(-5), 0},
		{intPtr(0), 0},
		{intPtr(1), 1},
		{intPtr(500), 500},
		{intPtr(MaxLimit), MaxLimit},
		{intPtr(5000), MaxLimit},
	}
	for _, c := range cases {
		if got := clampLimit(c.in); got != c.want {
			t.Errorf("clampLimit(%v) = %d, ожидался %d", c.in, got, c.want)
		}
	}
}

// TestBuildPlan_LimitZero проверяет, что явный limit=0 не подменяется
// значением по умолчанию: пустая страница — валидный запрос.
func TestBuildPlan_LimitZero(t *testing.T) {
	zero := 0
	plan, err := BuildPlan(Spec{Limit: &zero})
	if err != nil {
		t.Fatalf("BuildPlan() вернул ошибку: %v", err)
	}
	if plan.Limit != 0 {
		t.Errorf("Limit = %d, ожидался 0 (явно заданный)", plan.Limit)
	}
}

// TestClampOffset проверяет нормализацию смещения.
func TestClampOffset(t *testing.T) {
	if got := clampOffset(-10); got != 0 {
		t.Errorf("clampOffset(-10) = %d, ожидался 0", got)
	}
	if got := clampOffset(42); got != 42 {
		t.Errorf("clampOffset(42) = %d, ожидался 42", got)
	}
}
