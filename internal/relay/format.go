package relay

import (
	"errors"
	"fmt"

	"github.com/ca-srg/arxivbot/internal/dify"
)

const (
	FallbackText = "応答を取得できませんでした。"

	detectedFormat = "arXiv URLを検出しました: %s\n\n"
)

// FormatResult builds the reply for a successful analysis.
func FormatResult(arxivURL, text string) string {
	return fmt.Sprintf(detectedFormat+"解析結果:\n%s", arxivURL, text)
}

// FormatFailure builds the reply shown when the analysis call failed.
func FormatFailure(arxivURL string, err error) string {
	return fmt.Sprintf(detectedFormat+"解析に失敗しました: %s", arxivURL, failureReason(err))
}

// FormatRateLimited builds the reply shown when the analysis budget is exhausted.
func FormatRateLimited(arxivURL string) string {
	return fmt.Sprintf(detectedFormat+"解析リクエストが多すぎるため、今回は解析を行いませんでした。少し時間をおいて再度投稿してください。", arxivURL)
}

func failureReason(err error) string {
	var apiErr *dify.APIError
	if !errors.As(err, &apiErr) {
		return "予期しないエラーが発生しました。"
	}
	switch apiErr.Kind {
	case dify.ErrorKindTransport:
		return "解析APIに接続できませんでした。時間をおいて再度お試しください。"
	case dify.ErrorKindStatus:
		return fmt.Sprintf("解析APIがエラーを返しました (HTTP %d)。", apiErr.StatusCode)
	case dify.ErrorKindDecode:
		return "解析APIの応答を読み取れませんでした。"
	default:
		return "解析リクエストを作成できませんでした。"
	}
}
