package ui

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	finderModules = 7
	quietModules  = 2
)

// Matrix is a QR module grid; true marks a dark module.
type Matrix [][]bool

// DecodeMatrix samples the module grid out of a rendered QR PNG.
func DecodeMatrix(data []byte) (Matrix, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode qr png: %w", err)
	}
	return sampleMatrix(img)
}

func sampleMatrix(img image.Image) (Matrix, error) {
	minX, minY, maxX, maxY, ok := darkBounds(img)
	if !ok {
		return nil, errors.New("qr image has no dark pixels")
	}

	// The top-left finder pattern starts with a solid run of seven modules.
	run := 0
	for x := minX; x <= maxX && isDark(img, x, minY); x++ {
		run++
	}
	module := float64(run) / finderModules
	if module < 1 {
		return nil, errors.New("qr modules are smaller than one pixel")
	}

	cols := int(math.Round(float64(maxX-minX+1) / module))
	rows := int(math.Round(float64(maxY-minY+1) / module))
	if cols < finderModules || rows < finderModules {
		return nil, fmt.Errorf("qr grid %dx%d is too small", cols, rows)
	}

	matrix := make(Matrix, rows)
	for r := range rows {
		matrix[r] = make([]bool, cols)
		y := minY + int((float64(r)+0.5)*module)
		for c := range cols {
			x := minX + int((float64(c)+0.5)*module)
			matrix[r][c] = isDark(img, x, y)
		}
	}
	return matrix, nil
}

func darkBounds(img image.Image) (minX, minY, maxX, maxY int, ok bool) {
	b := img.Bounds()
	minX, minY = b.Max.X, b.Max.Y
	maxX, maxY = b.Min.X-1, b.Min.Y-1

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !isDark(img, x, y) {
				continue
			}
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	return minX, minY, maxX, maxY, maxX >= minX
}

func isDark(img image.Image, x, y int) bool {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return false
	}
	r, g, b, a := img.At(x, y).RGBA()
	if a < 0x8000 {
		return false
	}
	return (r+g+b)/3 < 0x8000
}

// RenderMatrix draws the grid with half-block glyphs, two module rows per
// terminal line, surrounded by a quiet zone.
func RenderMatrix(m Matrix) string {
	if len(m) == 0 {
		return ""
	}

	width := len(m[0]) + 2*quietModules
	height := len(m) + 2*quietModules
	// light reports whether the padded cell is a light module.
	light := func(r, c int) bool {
		r, c = r-quietModules, c-quietModules
		if r < 0 || c < 0 || r >= len(m) || c >= len(m[r]) {
			return true
		}
		return !m[r][c]
	}

	var sb strings.Builder
	for r := 0; r < height; r += 2 {
		for c := range width {
			top := light(r, c)
			bottom := r+1 < height && light(r+1, c)
			switch {
			case top && bottom:
				sb.WriteString("█")
			case top:
				sb.WriteString("▀")
			case bottom:
				sb.WriteString("▄")
			default:
				sb.WriteString(" ")
			}
		}
		if r+2 < height {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// RenderQR renders a QR PNG as a framed terminal block with a caption.
func RenderQR(data []byte, caption string) (string, error) {
	matrix, err := DecodeMatrix(data)
	if err != nil {
		return "", err
	}

	t := defaultTheme()
	block := t.qrFrame.Render(t.qr.Render(RenderMatrix(matrix)))
	if caption == "" {
		return block, nil
	}
	return lipgloss.JoinVertical(lipgloss.Left, t.banner.Render(caption), block), nil
}
