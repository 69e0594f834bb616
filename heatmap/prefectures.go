package heatmap

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Prefectures in JIS X 0401 order; the code is index+1.
var Prefectures = []string{
	"北海道", "青森県", "岩手県", "宮城県", "秋田県", "山形県", "福島県",
	"茨城県", "栃木県", "群馬県", "埼玉県", "千葉県", "東京都", "神奈川県",
	"新潟県", "富山県", "石川県", "福井県", "山梨県", "長野県", "岐阜県",
	"静岡県", "愛知県", "三重県", "滋賀県", "京都府", "大阪府", "兵庫県",
	"奈良県", "和歌山県", "鳥取県", "島根県", "岡山県", "広島県", "山口県",
	"徳島県", "香川県", "愛媛県", "高知県", "福岡県", "佐賀県", "長崎県",
	"熊本県", "大分県", "宮崎県", "鹿児島県", "沖縄県",
}

type Region struct {
	Name        string   `json:"name"`
	Prefectures []string `json:"prefectures"`
}

var Regions = []Region{
	{Name: "北海道・東北", Prefectures: []string{"北海道", "青森県", "岩手県", "宮城県", "秋田県", "山形県", "福島県"}},
	{Name: "関東", Prefectures: []string{"茨城県", "栃木県", "群馬県", "埼玉県", "千葉県", "東京都", "神奈川県"}},
	{Name: "中部", Prefectures: []string{"新潟県", "富山県", "石川県", "福井県", "山梨県", "長野県", "岐阜県", "静岡県", "愛知県"}},
	{Name: "関西", Prefectures: []string{"三重県", "滋賀県", "京都府", "大阪府", "兵庫県", "奈良県", "和歌山県"}},
	{Name: "中国・四国", Prefectures: []string{"鳥取県", "島根県", "岡山県", "広島県", "山口県", "徳島県", "香川県", "愛媛県", "高知県"}},
	{Name: "九州・沖縄", Prefectures: []string{"福岡県", "佐賀県", "長崎県", "熊本県", "大分県", "宮崎県", "鹿児島県", "沖縄県"}},
}

// Unset labels participations without a prefecture.
const Unset = "未設定"

var prefectureCodes = func() map[string]int {
	m := make(map[string]int, len(Prefectures))
	for i, name := range Prefectures {
		m[name] = i + 1
	}
	return m
}()

// NormalizePrefecture folds width variants (NFKC) and completes the suffix:
// 東京 becomes 東京都, 京都 becomes 京都府, 愛知 becomes 愛知県. Empty input stays empty.
func NormalizePrefecture(name string) string {
	name = strings.TrimSpace(norm.NFKC.String(name))
	if name == "" {
		return ""
	}
	if _, ok := prefectureCodes[name]; ok {
		return name
	}
	// 京都 ends in 都, so these go before the suffix check
	switch name {
	case "東京":
		return "東京都"
	case "大阪":
		return "大阪府"
	case "京都":
		return "京都府"
	}
	if strings.HasSuffix(name, "県") || strings.HasSuffix(name, "府") ||
		strings.HasSuffix(name, "都") || strings.HasSuffix(name, "道") {
		return name
	}
	return name + "県"
}

// Code returns the JIS code of a prefecture, or 0 when unknown.
func Code(name string) int {
	if code, ok := prefectureCodes[name]; ok {
		return code
	}
	return prefectureCodes[NormalizePrefecture(name)]
}

// RegionOf returns the region containing a prefecture, or "".
func RegionOf(name string) string {
	name = NormalizePrefecture(name)
	for _, r := range Regions {
		for _, p := range r.Prefectures {
			if p == name {
				return r.Name
			}
		}
	}
	return ""
}
