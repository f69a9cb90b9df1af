// Package render rasterizes player records into fixed-size leaderboard
// cards.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/sbowler1/sweet-stats/internal/leaderboard"
)

// Card dimensions match the emblem aspect ratio Bungie serves.
const (
	cardWidth  = 474
	cardHeight = 96
)

// ImageLoader fetches an image by URL. Swapped for a stub in tests.
type ImageLoader func(ctx context.Context, url string) (image.Image, error)

// CardRenderer draws one player record onto a 474x96 card.
type CardRenderer struct {
	loader    ImageLoader
	nameFace  font.Face
	textFace  font.Face
	titleFace font.Face
	powerFace font.Face
	lightIcon image.Image // nil when the asset is missing
}

// New creates a CardRenderer, loading fonts and the power icon from
// assetsDir. Missing assets degrade: text falls back to a built-in face
// and the icon is skipped. loader may be nil to use an HTTP loader.
func New(assetsDir string, loader ImageLoader) *CardRenderer {
	if loader == nil {
		loader = httpImageLoader(&http.Client{})
	}

	r := &CardRenderer{
		loader:    loader,
		nameFace:  loadFace(assetsDir, "Roboto-Bold.ttf", 25),
		textFace:  loadFace(assetsDir, "Roboto-Bold.ttf", 18),
		titleFace: loadFace(assetsDir, "Roboto-BoldItalic.ttf", 18),
		powerFace: loadFace(assetsDir, "Roboto-Bold.ttf", 32),
	}

	if icon, err := loadImageFile(filepath.Join(assetsDir, "light.png")); err != nil {
		slog.Warn("Power icon not available, cards render without it", "error", err)
	} else {
		r.lightIcon = icon
	}

	return r
}

// Render draws the record onto a card and returns it PNG-encoded. The
// record is never mutated. A failed emblem download falls back to a solid
// background rather than failing the card.
func (r *CardRenderer) Render(ctx context.Context, rec *leaderboard.PlayerRecord) ([]byte, error) {
	dc := gg.NewContext(cardWidth, cardHeight)

	r.drawBackground(ctx, dc, rec.EmblemURL)

	// Left column: name, title, race/class, playtime
	dc.SetFontFace(r.nameFace)
	dc.SetHexColor("#ffffff")
	dc.DrawString(rec.DisplayLabel, 96, cardHeight*0.3)

	dc.SetFontFace(r.titleFace)
	dc.SetHexColor("#9c6397")
	dc.DrawString(rec.TitleLabel, 96, cardHeight*0.52)

	dc.SetFontFace(r.textFace)
	dc.SetHexColor("#ffffff")
	dc.DrawString(rec.RaceClassLabel, 96, cardHeight*0.76)

	playtime := fmt.Sprintf("%dh %dm", rec.MinutesPlayed/60, rec.MinutesPlayed%60)
	dc.DrawString(playtime, 96, cardHeight*0.96)

	// Right column: season rank, power breakdown, KDA
	seasonLabel := fmt.Sprintf("Season Rank: %d", rec.SeasonRank)
	w, _ := dc.MeasureString(seasonLabel)
	dc.DrawString(seasonLabel, cardWidth-8-w, cardHeight*0.76)

	r.drawPower(dc, rec)
	r.drawKDA(dc, rec)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("failed to encode card: %w", err)
	}
	return buf.Bytes(), nil
}

// drawBackground paints the emblem, or solid black when the emblem is
// missing or cannot be loaded.
func (r *CardRenderer) drawBackground(ctx context.Context, dc *gg.Context, emblemURL string) {
	dc.SetHexColor("#000000")
	dc.Clear()

	if emblemURL == "" {
		return
	}

	emblem, err := r.loader(ctx, emblemURL)
	if err != nil {
		slog.Warn("Failed to load emblem, using solid background", "url", emblemURL, "error", err)
		return
	}
	dc.DrawImage(scaleImage(emblem, cardWidth, cardHeight), 0, 0)
}

// drawPower draws the large power level with its icon on the first line
// and the base + bonus breakdown beneath it.
func (r *CardRenderer) drawPower(dc *gg.Context, rec *leaderboard.PlayerRecord) {
	power := fmt.Sprintf("%d", rec.PowerLevel)

	dc.SetFontFace(r.powerFace)
	dc.SetHexColor("#e2d259")
	powerW, _ := dc.MeasureString(power)
	dc.DrawString(power, cardWidth-8-powerW, (cardHeight/2)*0.7)

	if r.lightIcon != nil {
		iconY := cardHeight * 0.06
		dc.DrawImage(scaleImage(r.lightIcon, 32, 32), cardWidth-32-int(powerW), int(iconY))
	}

	bonus := fmt.Sprintf(" + %d", rec.ArtifactBonus)
	dc.SetFontFace(r.textFace)
	dc.SetHexColor("#09d7d0")
	bonusW, _ := dc.MeasureString(bonus)
	dc.DrawString(bonus, cardWidth-8-bonusW, cardHeight*0.56)

	base := fmt.Sprintf("%d", rec.BasePower())
	dc.SetHexColor("#ffffff")
	baseW, _ := dc.MeasureString(base)
	dc.DrawString(base, cardWidth-8-bonusW-baseW, cardHeight*0.56)
}

// drawKDA draws the PvP and PvE KDA pairs on the bottom line.
func (r *CardRenderer) drawKDA(dc *gg.Context, rec *leaderboard.PlayerRecord) {
	dc.SetFontFace(r.textFace)
	dc.SetHexColor("#ffffff")

	pveW, _ := dc.MeasureString("PvE: " + rec.PvEKDA)
	pvpW, _ := dc.MeasureString("PvP: " + rec.PvPKDA)
	pveValueW, _ := dc.MeasureString(rec.PvEKDA)
	pvpValueW, _ := dc.MeasureString(rec.PvPKDA)

	y := cardHeight * 0.96
	dc.DrawString("PvP:", cardWidth-12-pvpW-pveW, y)
	dc.DrawString(rec.PvPKDA, cardWidth-12-pveW-pvpValueW, y)
	dc.DrawString("PvE:", cardWidth-8-pveW, y)
	dc.DrawString(rec.PvEKDA, cardWidth-8-pveValueW, y)
}

// httpImageLoader fetches and decodes an image over HTTP.
func httpImageLoader(client *http.Client) ImageLoader {
	return func(ctx context.Context, url string) (image.Image, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("image fetch failed: status %d", resp.StatusCode)
		}

		img, _, err := image.Decode(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
		return img, nil
	}
}

// loadFace loads a TTF at the given size, falling back to the built-in
// bitmap face when the asset is missing.
func loadFace(assetsDir, name string, points float64) font.Face {
	face, err := gg.LoadFontFace(filepath.Join(assetsDir, name), points)
	if err != nil {
		slog.Warn("Font not available, using built-in face", "font", name, "error", err)
		return basicfont.Face7x13
	}
	return face
}

// loadImageFile decodes an image from disk.
func loadImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// scaleImage resizes an image to exactly w x h.
func scaleImage(src image.Image, w, h int) image.Image {
	if src.Bounds().Dx() == w && src.Bounds().Dy() == h {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}
