package ui

import (
	"fmt"
	"image"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/avashx/itark/camera"
	"github.com/avashx/itark/media"
)

// renderThumbnail draws f as cols×rows terminal cells, two pixels per cell
// using the upper half block.
func renderThumbnail(f *camera.Frame, cols, rows int) (string, error) {
	img, err := media.Thumbnail(f, cols, rows*2)
	if err != nil {
		return "", err
	}
	b := img.Bounds()

	var sb strings.Builder
	for y := b.Min.Y; y+1 < b.Max.Y; y += 2 {
		for x := b.Min.X; x < b.Max.X; x++ {
			cell := lipgloss.NewStyle().
				Foreground(hexColor(img, x, y)).
				Background(hexColor(img, x, y+1))
			sb.WriteString(cell.Render("▀"))
		}
		sb.WriteByte('\n')
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}

func hexColor(img image.Image, x, y int) lipgloss.Color {
	r, g, b, _ := img.At(x, y).RGBA()
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8))
}
