package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbowler1/sweet-stats/internal/leaderboard"
)

func testRecord() *leaderboard.PlayerRecord {
	return &leaderboard.PlayerRecord{
		MembershipID:   "4611686018467260757",
		MembershipType: 3,
		EmblemURL:      "https://example.invalid/emblem.jpg",
		DisplayLabel:   "Saint-14#1234",
		TitleLabel:     "Reckoner",
		PowerLevel:     1810,
		ArtifactBonus:  12,
		RaceClassLabel: "Exo Hunter",
		SeasonRank:     100,
		MinutesPlayed:  12345,
		PvPKDA:         "1.42",
		PvEKDA:         "9.87",
		LastPlayedAt:   time.Date(2024, 2, 28, 21, 30, 0, 0, time.UTC),
		CharacterID:    "char-1",
		UpdatedAt:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// solidLoader returns a loader serving a uniform image of exactly card
// size, so no scaling blurs the color.
func solidLoader(c color.RGBA) ImageLoader {
	return func(context.Context, string) (image.Image, error) {
		img := image.NewRGBA(image.Rect(0, 0, cardWidth, cardHeight))
		for y := 0; y < cardHeight; y++ {
			for x := 0; x < cardWidth; x++ {
				img.SetRGBA(x, y, c)
			}
		}
		return img, nil
	}
}

func decodeCard(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestRenderCardDimensions(t *testing.T) {
	t.Parallel()

	r := New(t.TempDir(), solidLoader(color.RGBA{R: 200, A: 255}))
	data, err := r.Render(context.Background(), testRecord())
	require.NoError(t, err)

	img := decodeCard(t, data)
	assert.Equal(t, 474, img.Bounds().Dx())
	assert.Equal(t, 96, img.Bounds().Dy())
}

func TestRenderUsesEmblemBackground(t *testing.T) {
	t.Parallel()

	red := color.RGBA{R: 200, A: 255}
	r := New(t.TempDir(), solidLoader(red))
	data, err := r.Render(context.Background(), testRecord())
	require.NoError(t, err)

	// The top-left corner is never covered by text.
	got := color.RGBAModel.Convert(decodeCard(t, data).At(0, 0)).(color.RGBA)
	assert.Equal(t, red, got)
}

func TestRenderMissingEmblemFallsBackToBlack(t *testing.T) {
	t.Parallel()

	r := New(t.TempDir(), func(context.Context, string) (image.Image, error) {
		t.Fatal("loader must not be called for records without an emblem")
		return nil, nil
	})

	rec := testRecord()
	rec.EmblemURL = ""
	data, err := r.Render(context.Background(), rec)
	require.NoError(t, err)

	got := color.RGBAModel.Convert(decodeCard(t, data).At(0, 0)).(color.RGBA)
	assert.Equal(t, color.RGBA{A: 255}, got)
}

func TestRenderDegradesOnLoaderFailure(t *testing.T) {
	t.Parallel()

	r := New(t.TempDir(), func(context.Context, string) (image.Image, error) {
		return nil, errors.New("connection refused")
	})

	data, err := r.Render(context.Background(), testRecord())
	require.NoError(t, err, "a failed emblem download must not fail the card")

	got := color.RGBAModel.Convert(decodeCard(t, data).At(0, 0)).(color.RGBA)
	assert.Equal(t, color.RGBA{A: 255}, got)
}

func TestRenderDoesNotMutateRecord(t *testing.T) {
	t.Parallel()

	r := New(t.TempDir(), solidLoader(color.RGBA{B: 120, A: 255}))
	rec := testRecord()
	want := *rec

	_, err := r.Render(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, want, *rec)
}

func TestScaleImage(t *testing.T) {
	t.Parallel()

	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	scaled := scaleImage(src, cardWidth, cardHeight)
	assert.Equal(t, cardWidth, scaled.Bounds().Dx())
	assert.Equal(t, cardHeight, scaled.Bounds().Dy())

	// Already-sized images pass through untouched.
	exact := image.NewRGBA(image.Rect(0, 0, cardWidth, cardHeight))
	assert.Equal(t, image.Image(exact), scaleImage(exact, cardWidth, cardHeight))
}
