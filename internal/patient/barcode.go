package patient

import (
	"bytes"
	"fmt"
	"image/png"
	"strconv"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
)

const (
	LabelWidth  = 300
	LabelHeight = 80
)

// FormatRecordNumber renders n as a four-digit, zero-padded record number.
func FormatRecordNumber(n int) string {
	return fmt.Sprintf("%04d", n)
}

// NormalizeRecordNumber turns a scanned or typed code into the stored
// record number form. "7" and "0007" both yield "0007".
func NormalizeRecordNumber(code string) (string, error) {
	code = strings.TrimSpace(code)
	n, err := strconv.Atoi(code)
	if err != nil || n <= 0 {
		return "", ErrInvalidRecordNumber
	}
	return FormatRecordNumber(n), nil
}

// RenderLabel encodes value as a Code128 barcode scaled to width x height
// and returns it as PNG.
func RenderLabel(value string, width, height int) ([]byte, error) {
	code, err := code128.Encode(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode barcode: %w", err)
	}

	scaled, err := barcode.Scale(code, width, height)
	if err != nil {
		return nil, fmt.Errorf("failed to scale barcode: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
