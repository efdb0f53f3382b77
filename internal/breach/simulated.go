package breach

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hitoshi/sentinelx/internal/model"
)

//go:embed simulated_breaches.json
var simulatedData []byte

// simulatedPayload はシミュレーションデータファイルの構造。
type simulatedPayload struct {
	Breaches map[string][]RawBreach `json:"breaches"`
}

// genericFallbackBreach は特定アドレス向けのデータがない場合に返す汎用レコード。
// シミュレーションモードでは常に何らかの漏洩が存在する状態を再現し、
// アラートパイプライン全体が動作確認できるようにする。
var genericFallbackBreach = RawBreach{
	Name:        "RailYatri",
	BreachDate:  "2020-02-15",
	DataClasses: []string{"Email addresses", "Genders", "Names", "Phone numbers", "Purchases"},
}

// SimulatedSource は組み込みのシミュレーション漏洩データセットを提供する。
// ライブ検索が未設定の場合のフォールバックとして使用され、
// 認証情報の不足で監視が黙って停止することを防ぐ。
type SimulatedSource struct {
	normalizer *Normalizer
	logger     *slog.Logger
	payload    simulatedPayload
}

// NewSimulatedSource はSimulatedSourceの新しいインスタンスを生成する。
// 組み込みデータのパースに失敗した場合はエラーを返す。
func NewSimulatedSource(normalizer *Normalizer, logger *slog.Logger) (*SimulatedSource, error) {
	var payload simulatedPayload
	if err := json.Unmarshal(simulatedData, &payload); err != nil {
		return nil, fmt.Errorf("シミュレーションデータのパースに失敗しました: %w", err)
	}

	return &SimulatedSource{
		normalizer: normalizer,
		logger:     logger,
		payload:    payload,
	}, nil
}

// Lookup は指定アドレスのシミュレーション漏洩レコードを返す。
// アドレス固有のデータがない場合は汎用レコード1件を返す。
func (s *SimulatedSource) Lookup(email string) []model.BreachRecord {
	raws, ok := s.payload.Breaches[email]
	if !ok || len(raws) == 0 {
		s.logger.Debug("シミュレーションデータに該当アドレスがないため汎用レコードを返します",
			slog.String("email", email),
		)
		raws = []RawBreach{genericFallbackBreach}
	}

	return s.normalizer.NormalizeAll(raws)
}
