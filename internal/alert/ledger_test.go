package alert

import (
	"testing"
	"time"

	"github.com/hitoshi/sentinelx/internal/model"
)

func record(name string) model.BreachRecord {
	return model.BreachRecord{
		Name:        name,
		BreachDate:  "2023-05-01",
		DataExposed: []string{"Email addresses"},
		Severity:    model.SeverityLow,
	}
}

func names(breaches []model.BreachRecord) []string {
	out := make([]string, 0, len(breaches))
	for _, b := range breaches {
		out = append(out, b.Name)
	}
	return out
}

// --- 差分検出 ---

func TestDiffNewBreaches(t *testing.T) {
	previous := []model.BreachRecord{record("SiteA"), record("SiteB")}
	current := []model.BreachRecord{record("SiteB"), record("SiteC")}

	diff := DiffNewBreaches(previous, current)

	if len(diff) != 1 {
		t.Fatalf("差分件数 = %d, 期待値 1: %v", len(diff), names(diff))
	}
	if diff[0].Name != "SiteC" {
		t.Errorf("差分 = %q, 期待値 %q", diff[0].Name, "SiteC")
	}
}

func TestDiffNewBreaches_NoChange(t *testing.T) {
	previous := []model.BreachRecord{record("SiteA")}
	current := []model.BreachRecord{record("SiteA")}

	if diff := DiffNewBreaches(previous, current); len(diff) != 0 {
		t.Errorf("変化なしで差分 = %v, 期待値は空", names(diff))
	}
}

func TestDiffNewBreaches_EmptyPrevious(t *testing.T) {
	current := []model.BreachRecord{record("SiteA"), record("SiteB")}

	diff := DiffNewBreaches(nil, current)

	if len(diff) != 2 {
		t.Errorf("差分件数 = %d, 期待値 2", len(diff))
	}
}

// --- 記録済み漏洩の除外 ---

func TestFilterNewBreaches_NoExistingAlert(t *testing.T) {
	breaches := []model.BreachRecord{record("SiteA")}

	filtered := FilterNewBreaches(nil, breaches)

	if len(filtered) != 1 {
		t.Errorf("件数 = %d, 期待値 1", len(filtered))
	}
}

func TestFilterNewBreaches_ExcludesKnown(t *testing.T) {
	existing := &model.Alert{
		Breaches: []model.BreachRecord{record("SiteA")},
	}
	breaches := []model.BreachRecord{record("SiteA"), record("SiteB")}

	filtered := FilterNewBreaches(existing, breaches)

	if len(filtered) != 1 || filtered[0].Name != "SiteB" {
		t.Errorf("除外結果 = %v, 期待値 [SiteB]", names(filtered))
	}
}

// --- マージ ---

func TestMerge_CreatesNewAlert(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	breaches := []model.BreachRecord{record("SiteA"), record("SiteB")}

	merged := Merge(nil, "user-1", "victim@example.com", breaches, model.SeverityHigh, now)

	if merged == nil {
		t.Fatal("新規アラートが生成されるべき")
	}
	if merged.ID == "" {
		t.Error("IDが採番されるべき")
	}
	if merged.BreachCount != 2 {
		t.Errorf("BreachCount = %d, 期待値 2", merged.BreachCount)
	}
	if merged.RiskScore != 50 {
		t.Errorf("RiskScore = %d, 期待値 50", merged.RiskScore)
	}
	if merged.Severity != model.SeverityHigh {
		t.Errorf("Severity = %q, 期待値 %q", merged.Severity, model.SeverityHigh)
	}
	if !merged.DetectedAt.Equal(now) {
		t.Errorf("DetectedAt = %v, 期待値 %v", merged.DetectedAt, now)
	}
}

func TestMerge_UnionWithExisting(t *testing.T) {
	now := time.Now()
	existing := &model.Alert{
		ID:             "alert-1",
		UserID:         "user-1",
		MonitoredEmail: "victim@example.com",
		BreachCount:    2,
		Breaches:       []model.BreachRecord{record("SiteA"), record("SiteB")},
		RiskScore:      50,
	}
	incoming := []model.BreachRecord{record("SiteC"), record("SiteD")}

	merged := Merge(existing, "user-1", "victim@example.com", incoming, model.SeverityMedium, now)

	if merged == nil {
		t.Fatal("マージ結果が生成されるべき")
	}
	if merged.ID != "alert-1" {
		t.Errorf("ID = %q, 既存IDが維持されるべき", merged.ID)
	}
	if merged.BreachCount != 4 {
		t.Errorf("BreachCount = %d, 期待値 4", merged.BreachCount)
	}
	if merged.RiskScore != 100 {
		t.Errorf("RiskScore = %d, 期待値 100", merged.RiskScore)
	}
}

func TestMerge_ScoreCappedAt100(t *testing.T) {
	now := time.Now()
	incoming := []model.BreachRecord{
		record("S1"), record("S2"), record("S3"), record("S4"), record("S5"),
	}

	merged := Merge(nil, "user-1", "victim@example.com", incoming, model.SeverityHigh, now)

	if merged.RiskScore != 100 {
		t.Errorf("RiskScore = %d, 上限100でクランプされるべき", merged.RiskScore)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	now := time.Now()
	breaches := []model.BreachRecord{record("SiteA")}

	first := Merge(nil, "user-1", "victim@example.com", breaches, model.SeverityLow, now)
	if first == nil {
		t.Fatal("初回マージはアラートを生成すべき")
	}

	// 同じ漏洩の再マージは変更を生まない
	second := Merge(first, "user-1", "victim@example.com", breaches, model.SeverityLow, now)
	if second != nil {
		t.Errorf("記録済み漏洩のみの再マージ = %+v, 期待値 nil", second)
	}

	if first.BreachCount != 1 || first.RiskScore != 25 {
		t.Errorf("既存アラートが変更されている: count=%d score=%d", first.BreachCount, first.RiskScore)
	}
}

func TestMerge_DoesNotMutateExisting(t *testing.T) {
	now := time.Now()
	existing := &model.Alert{
		ID:          "alert-1",
		BreachCount: 1,
		Breaches:    []model.BreachRecord{record("SiteA")},
		RiskScore:   25,
	}

	Merge(existing, "user-1", "victim@example.com", []model.BreachRecord{record("SiteB")}, model.SeverityLow, now)

	if len(existing.Breaches) != 1 || existing.BreachCount != 1 {
		t.Errorf("既存アラートが破壊的に変更されている: %+v", existing)
	}
}
