package server

import (
	"fmt"
	"net/http"

	"golang.org/x/text/language"
)

// Japanese first: it is the fallback for unmatched Accept-Language headers.
var supported = []language.Tag{language.Japanese, language.English}

var matcher = language.NewMatcher(supported)

type msgID string

const (
	msgNoFile        msgID = "no_file"
	msgOnlyPDF       msgID = "only_pdf"
	msgFailed        msgID = "failed"
	msgTooLarge      msgID = "too_large"
	msgTooManySheets msgID = "too_many_sheets"
	msgBadRequest    msgID = "bad_request"
	msgJobNotFound   msgID = "job_not_found"
	msgNotReady      msgID = "not_ready"
	msgJobsDisabled  msgID = "jobs_disabled"
	msgBadPage       msgID = "bad_page"
	msgEncrypted     msgID = "encrypted"
	msgBusy          msgID = "busy"
)

var catalog = map[language.Tag]map[msgID]string{
	language.Japanese: {
		msgNoFile:        "ファイルが選択されていません",
		msgOnlyPDF:       "PDFファイルのみアップロード可能です",
		msgFailed:        "エラーが発生しました: %s",
		msgTooLarge:      "ファイルサイズが大きすぎます（上限 %d MB）",
		msgTooManySheets: "ページ数が多すぎます: %s",
		msgBadRequest:    "入力内容が正しくありません: %s",
		msgJobNotFound:   "ジョブが見つかりません",
		msgNotReady:      "変換はまだ完了していません",
		msgJobsDisabled:  "非同期処理は利用できません",
		msgBadPage:       "ページ番号が正しくありません",
		msgEncrypted:     "パスワード付きのPDFは処理できません",
		msgBusy:          "混み合っています。しばらくしてから再度お試しください",
	},
	language.English: {
		msgNoFile:        "No file selected",
		msgOnlyPDF:       "Only PDF files can be uploaded",
		msgFailed:        "An error occurred: %s",
		msgTooLarge:      "File is too large (limit %d MB)",
		msgTooManySheets: "Too many pages: %s",
		msgBadRequest:    "Invalid request: %s",
		msgJobNotFound:   "Job not found",
		msgNotReady:      "Conversion has not finished yet",
		msgJobsDisabled:  "Background jobs are not available",
		msgBadPage:       "Invalid page number",
		msgEncrypted:     "Password-protected PDFs are not supported",
		msgBusy:          "Server is busy, please try again shortly",
	},
}

var labels = map[language.Tag]map[string]string{
	language.Japanese: {
		"title":        "A3 → A4 PDF 分割",
		"lead":         "A3でスキャンしたPDFをA4ページに分割します。",
		"file":         "PDFファイル",
		"max_size":     "最大サイズ",
		"mode_simple":  "通常分割（左右・上下）",
		"mode_booklet": "中綴じ冊子の並べ替え",
		"pages":        "総ページ数",
		"reverse":      "順序を入れ替える",
		"rotate":       "90度回転",
		"submit":       "変換してダウンロード",
		"submit_async": "バックグラウンドで変換",
		"download":     "ダウンロード",
	},
	language.English: {
		"title":        "A3 → A4 PDF splitter",
		"lead":         "Split PDFs scanned at A3 into A4 pages.",
		"file":         "PDF file",
		"max_size":     "Maximum size",
		"mode_simple":  "Simple split (left/right, top/bottom)",
		"mode_booklet": "Reorder a saddle-stitched booklet",
		"pages":        "Total pages",
		"reverse":      "Swap half order",
		"rotate":       "Rotate 90°",
		"submit":       "Convert and download",
		"submit_async": "Convert in background",
		"download":     "Download",
	},
}

// langFor picks the response language from Accept-Language.
func langFor(r *http.Request) language.Tag {
	tags, _, _ := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return supported[0]
	}
	return supported[idx]
}

func localize(r *http.Request, id msgID, args ...any) string {
	format := catalog[langFor(r)][id]
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
