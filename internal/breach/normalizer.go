// Package breach は漏洩レコードの正規化機能を提供する。
// 検索サービスやシミュレーションデータから取得した異種のレコードを、
// 深刻度分類済みの単一のBreachRecord表現に収束させる。
package breach

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/sentinelx/internal/model"
)

const (
	// unknownBreachName は名前が取得できなかった漏洩のプレースホルダー。
	unknownBreachName = "Unknown"
	// placeholderBreachDate は日付不明の漏洩に使用する固定のプレースホルダー日付。
	// 「現在時刻」は根拠のない新しさを示唆するため使用しない。
	placeholderBreachDate = "2021-01-01"
)

// defaultDataExposed は漏洩カテゴリが不明な場合のデフォルト。
// 漏洩検索に現れた以上、少なくともメールアドレスは露出している。
var defaultDataExposed = []string{"Email Addresses"}

// RawBreach は漏洩検索サービスが返す生のレコードを表す。
// フィールドはすべてオプショナルであり、正規化時に補完される。
type RawBreach struct {
	Name        string   `json:"Name"`
	Title       string   `json:"Title"`
	BreachDate  string   `json:"BreachDate"`
	DataClasses []string `json:"DataClasses"`
	Description string   `json:"Description"`
}

// Normalizer は生の漏洩レコードをBreachRecordに正規化する。
// Descriptionに含まれるHTMLはbluemondayのポリシーでサニタイズする。
type Normalizer struct {
	policy *bluemonday.Policy
}

// NewNormalizer はNormalizerの新しいインスタンスを生成する。
// 説明文はプレーンテキストとして扱うため、StrictPolicyで全タグを除去する。
func NewNormalizer() *Normalizer {
	return &Normalizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Normalize は生レコードをBreachRecordに変換する。
// 名前はName → Title → "Unknown" の順でフォールバックし、
// 日付と漏洩カテゴリは不明時に固定のデフォルトで補完する。
// 深刻度はこの時点で漏洩カテゴリから導出され、以後変更されない。
func (n *Normalizer) Normalize(raw RawBreach) model.BreachRecord {
	name := raw.Name
	if name == "" {
		name = raw.Title
	}
	if name == "" {
		name = unknownBreachName
	}

	date := raw.BreachDate
	if date == "" {
		date = placeholderBreachDate
	}

	dataExposed := raw.DataClasses
	if len(dataExposed) == 0 {
		dataExposed = defaultDataExposed
	}

	return model.BreachRecord{
		Name:        name,
		BreachDate:  date,
		DataExposed: dataExposed,
		Severity:    SeverityFromDataClasses(dataExposed),
		Description: strings.TrimSpace(n.policy.Sanitize(raw.Description)),
	}
}

// NormalizeAll は生レコードのスライスを一括で正規化する。
func (n *Normalizer) NormalizeAll(raws []RawBreach) []model.BreachRecord {
	records := make([]model.BreachRecord, 0, len(raws))
	for _, raw := range raws {
		records = append(records, n.Normalize(raw))
	}
	return records
}

// NormalizeName は名前だけが判明している漏洩をBreachRecordに変換する。
// 旧形式のデータでは漏洩が文字列名のみで表現されることがあるため、
// この境界で構造化レコードに収束させる。
func (n *Normalizer) NormalizeName(name string) model.BreachRecord {
	return n.Normalize(RawBreach{Name: name})
}

// financialDataClasses は即時にHigh判定となる金融系の漏洩カテゴリ。
var financialDataClasses = []string{
	"financial info", "credit cards", "bank account", "social security number",
}

// credentialDataClasses はHigh判定となる認証情報系の漏洩カテゴリ。
var credentialDataClasses = []string{
	"password", "passwords", "hashes",
}

// SeverityFromDataClasses は漏洩カテゴリの集合から深刻度を導出する。
// 判定は大文字小文字を区別しない優先順位チェーンであり、独立したルールではない:
//  1. 金融系カテゴリを含む → High
//  2. 認証情報系カテゴリを含む → High
//  3. メールアドレスのみの単一カテゴリ → Low
//  4. それ以外 → Medium
//
// 金融・認証情報の露出は、単一カテゴリLow判定より常に優先される。
func SeverityFromDataClasses(dataClasses []string) model.Severity {
	values := make(map[string]bool, len(dataClasses))
	for _, dc := range dataClasses {
		values[strings.ToLower(dc)] = true
	}

	for _, k := range financialDataClasses {
		if values[k] {
			return model.SeverityHigh
		}
	}
	for _, k := range credentialDataClasses {
		if values[k] {
			return model.SeverityHigh
		}
	}
	if values["email addresses"] && len(values) == 1 {
		return model.SeverityLow
	}
	return model.SeverityMedium
}
