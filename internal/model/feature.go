package model

// Feature はユーザーに個別付与できる機能タグを表す。
type Feature string

const (
	FeatureHome      Feature = "home"
	FeatureVideos    Feature = "videos"
	FeaturePortfolio Feature = "portfolio"
	FeatureFiles     Feature = "files"
	FeatureNotes     Feature = "notes"
)

// FeatureCatalog は機能タグの閉じた一覧。
// 管理者の全機能付与や入力検証はすべてこの一覧を参照する。
// 要素を追加する場合はマイグレーションと管理画面の更新も合わせて行うこと。
var FeatureCatalog = []Feature{
	FeatureHome,
	FeatureVideos,
	FeaturePortfolio,
	FeatureFiles,
	FeatureNotes,
}

// ParseFeature は文字列をFeatureに変換する。カタログ外の値はエラーを返す。
func ParseFeature(s string) (Feature, error) {
	for _, f := range FeatureCatalog {
		if string(f) == s {
			return f, nil
		}
	}
	return "", NewInvalidFeatureError(s)
}

// ParseFeatures は文字列の一覧をFeatureの一覧に変換する。
// 重複は取り除き、出現順を維持する。
func ParseFeatures(values []string) ([]Feature, error) {
	seen := make(map[Feature]bool, len(values))
	features := make([]Feature, 0, len(values))
	for _, v := range values {
		f, err := ParseFeature(v)
		if err != nil {
			return nil, err
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		features = append(features, f)
	}
	return features, nil
}

// FeatureStrings はFeatureの一覧を文字列の一覧に変換する。
func FeatureStrings(features []Feature) []string {
	out := make([]string, len(features))
	for i, f := range features {
		out[i] = string(f)
	}
	return out
}
