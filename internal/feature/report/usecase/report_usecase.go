// Package usecase はreportフィーチャーのビジネスロジックを実装します。
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"xray_backend/internal/feature/report/domain"
	"xray_backend/internal/feature/report/domain/entity"
)

const (
	// DefaultTimeout はテキスト生成1回あたりのタイムアウトです。
	DefaultTimeout = 60 * time.Second
	// UnknownPatient は患者名が無い場合のタイトル表記です。
	UnknownPatient = "Unknown Patient"
	// TitlePrefix はレポートタイトルの接頭辞です。
	TitlePrefix = "Medical Analysis Report for "
)

// promptTemplate はレポート生成用のプロンプトです。%s にはインデント付きJSONが入ります。
const promptTemplate = `
Based on the following patient data:
%s

Please provide a structured medical analysis report covering the following sections. Use clear headings for each section.
1. **Potential Illnesses or Conditions:** Analyze the symptoms, medical history, and lab results to suggest potential conditions.
2. **Potential Causes:** Explain the likely causes for the identified conditions.
3. **Recommended Precautions:** Provide actionable lifestyle, dietary, and other precautions.
4. **Potential Risk Factors:** Highlight the key risk factors based on the provided data.
5. **Medication Suggestions:** Recommend potential medications that a doctor MIGHT consider, prefacing with a strong recommendation to consult a physician.
6. **Disclaimer:** Add a standard medical AI disclaimer at the end.
`

// TextGenerator はプロンプトからテキストを生成するLLMクライアントのインターフェースです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Limiter は外部API呼び出しの頻度を制限するインターフェースです。
type Limiter interface {
	Wait(ctx context.Context) error
}

// reportUsecase は患者データからレポートを生成するビジネスロジックを提供します。
type reportUsecase struct {
	generator TextGenerator
	timeout   time.Duration
}

// NewReportUsecase はreportUsecaseの新しいインスタンスを生成します。
func NewReportUsecase(gen TextGenerator, timeout time.Duration) *reportUsecase {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &reportUsecase{generator: gen, timeout: timeout}
}

// Generate は患者データからプロンプトを組み立て、LLMでレポートを生成します。
func (u *reportUsecase) Generate(ctx context.Context, data entity.PatientData) (*entity.Report, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: patient data is empty", domain.ErrInvalidPatientData)
	}
	prompt, err := BuildPrompt(data)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	start := time.Now()
	text, err := u.generator.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timed out after %s", domain.ErrUpstreamService, u.timeout)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamService, err)
	}
	text = StripMarkdown(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", domain.ErrUpstreamService)
	}

	slog.Info("report generated", "chars", len(text), "elapsed", time.Since(start))
	return &entity.Report{Title: Title(data), Text: text}, nil
}

// BuildPrompt は患者データを2スペースインデントのJSONにしてテンプレートに埋め込みます。
func BuildPrompt(data entity.PatientData) (string, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidPatientData, err)
	}
	return fmt.Sprintf(promptTemplate, b), nil
}

// StripMarkdown は強調記号（** と *）を取り除き、前後の空白を削除します。
func StripMarkdown(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "*", "")
	return strings.TrimSpace(s)
}

// Title はレポートタイトルを返します。
func Title(data entity.PatientData) string {
	name := strings.TrimSpace(data.PatientName())
	if name == "" {
		name = UnknownPatient
	}
	return TitlePrefix + name
}
