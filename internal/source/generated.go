package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"

	"github.com/mholloway/switchback/internal/schedule"
	"github.com/mholloway/switchback/pkg/config"
)

// GeneratedSource synthesizes one wallpaper per period: a solid
// background in the period's color with the logo tinted in the
// period's logo color composited on top. Results are cached on disk
// keyed by a hash of the generation parameters, so editing the config
// invalidates stale images automatically.
type GeneratedSource struct {
	cfg     config.Generated
	dir     string
	size    image.Point
	cfgHash string
	logo    image.Image
}

// NewGeneratedSource prepares a source rendering at the given screen
// resolution under cacheDir.
func NewGeneratedSource(cfg config.Generated, cacheDir string, size image.Point) (*GeneratedSource, error) {
	if size.X <= 0 || size.Y <= 0 {
		size = image.Point{X: 1920, Y: 1080}
	}
	dir := filepath.Join(cacheDir, "generated")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating generated wallpaper directory: %w", err)
	}

	logo, err := loadLogo(config.ExpandPath(cfg.Logo))
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%v|%v|%v|%s|%dx%d",
		cfg.Logo, cfg.BackgroundColors, cfg.LogoColors, cfg.LogoScale, cfg.LogoPosition, size.X, size.Y)))

	return &GeneratedSource{
		cfg:     cfg,
		dir:     dir,
		size:    size,
		cfgHash: hex.EncodeToString(sum[:8]),
		logo:    logo,
	}, nil
}

// Wallpaper renders (or reuses) the wallpaper for p.
func (s *GeneratedSource) Wallpaper(p schedule.Period) (string, error) {
	out := filepath.Join(s.dir, fmt.Sprintf("%s-%s.png", p, s.cfgHash))
	if _, err := os.Stat(out); err == nil {
		return out, nil
	}

	bg, err := parseHex(s.periodColor(s.cfg.BackgroundColors, p))
	if err != nil {
		return "", err
	}
	tint, err := parseHex(s.periodColor(s.cfg.LogoColors, p))
	if err != nil {
		return "", err
	}

	img := s.compose(bg, tint)
	if err := writePNGAtomic(out, img); err != nil {
		return "", err
	}
	return out, nil
}

// SupportsPreload reports that generated paths are stable per config.
func (s *GeneratedSource) SupportsPreload() bool { return true }

func (s *GeneratedSource) periodColor(pc config.PeriodColors, p schedule.Period) string {
	switch p {
	case schedule.Morning:
		return pc.Morning
	case schedule.Afternoon:
		return pc.Afternoon
	default:
		return pc.Night
	}
}

// compose fills the background and overlays the tinted, scaled logo.
func (s *GeneratedSource) compose(bg, tint color.RGBA) *image.RGBA {
	out := image.NewRGBA(image.Rectangle{Max: s.size})
	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i+0], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = bg.R, bg.G, bg.B, 255
	}

	logo := scaleLogo(tintLogo(s.logo, tint), s.size, s.cfg.LogoScale)
	offset := s.logoOffset(logo.Bounds().Size())
	xdraw.Draw(out, logo.Bounds().Add(offset), logo, image.Point{}, xdraw.Over)
	return out
}

func (s *GeneratedSource) logoOffset(logoSize image.Point) image.Point {
	x := (s.size.X - logoSize.X) / 2
	margin := s.size.Y / 10
	switch s.cfg.LogoPosition {
	case "top":
		return image.Point{X: x, Y: margin}
	case "bottom":
		return image.Point{X: x, Y: s.size.Y - logoSize.Y - margin}
	default:
		return image.Point{X: x, Y: (s.size.Y - logoSize.Y) / 2}
	}
}

// tintLogo recolors the logo with tint while preserving per-pixel
// luminosity and alpha.
func tintLogo(logo image.Image, tint color.RGBA) *image.RGBA {
	b := logo.Bounds()
	out := image.NewRGBA(image.Rectangle{Max: b.Size()})
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(logo.At(x, y)).(color.NRGBA)
			if c.A == 0 {
				continue
			}
			lum := (float64(c.R) + float64(c.G) + float64(c.B)) / 3.0 / 255.0
			out.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{
				R: premul(tint.R, lum, c.A),
				G: premul(tint.G, lum, c.A),
				B: premul(tint.B, lum, c.A),
				A: c.A,
			})
		}
	}
	return out
}

// premul applies luminosity then alpha-premultiplies, as image.RGBA
// stores premultiplied channels.
func premul(c uint8, lum float64, a uint8) uint8 {
	return uint8(float64(c)*lum*float64(a)/255.0 + 0.5)
}

// scaleLogo sizes the logo to scale × the screen width, keeping aspect.
func scaleLogo(logo *image.RGBA, screen image.Point, scale float64) *image.RGBA {
	src := logo.Bounds().Size()
	w := int(float64(screen.X) * scale)
	if w < 1 {
		w = 1
	}
	h := src.Y * w / src.X
	if h < 1 {
		h = 1
	}
	if h > screen.Y {
		h = screen.Y
		w = src.X * h / src.Y
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), logo, logo.Bounds(), xdraw.Src, nil)
	return dst
}

func loadLogo(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening logo %s: %w", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding logo %s: %w", path, err)
	}
	return img, nil
}

func parseHex(s string) (color.RGBA, error) {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

func writePNGAtomic(final string, img image.Image) error {
	tmp := filepath.Join(filepath.Dir(final), ".tmp-"+uuid.NewString())
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encoding wallpaper: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming wallpaper into place: %w", err)
	}
	return nil
}
