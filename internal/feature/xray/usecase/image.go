package usecase

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"xray_backend/internal/feature/xray/domain"
)

// AllowedExtensions はアップロードを許可する拡張子です。
var AllowedExtensions = []string{".png", ".jpg", ".jpeg"}

// ValidateFileType はファイル名の拡張子が許可リストに含まれるか検証します。
func ValidateFileType(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", domain.ErrUnsupportedFileType, filename)
}

// CheckDimensions はヘッダーのみを読み、画像の一辺が maxSide を超えていないか検証します。
// maxSide が0以下の場合は検証しません。
func CheckDimensions(data []byte, maxSide int) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	if maxSide > 0 && (cfg.Width > maxSide || cfg.Height > maxSide) {
		return fmt.Errorf("%w: %dx%d pixels (max side %d)", domain.ErrImageTooLarge, cfg.Width, cfg.Height, maxSide)
	}
	return nil
}

// DecodeImage はPNG/JPEGのバイト列をデコードします。
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: image data is empty", domain.ErrDecode)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	return img, nil
}
