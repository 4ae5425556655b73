package media

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"sitewright/internal/artifact"
	"sitewright/internal/cli"
	derrors "sitewright/internal/errors"
)

var faviconSizes = []int{32, 128, 152, 167, 180, 192, 196, 600}

const thumbnailBaseWidth = 400

// Pipeline derives imagery into the cache directory and adds the build
// copies through the artifact writer. Every derivation is cached by file,
// a rendition that already exists is never rebuilt.
type Pipeline struct {
	templatesDir string
	cacheDir     string
	runner       *cli.Runner
	logger       *slog.Logger
}

func NewPipeline(templatesDir, cacheDir string, runner *cli.Runner, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		templatesDir: templatesDir,
		cacheDir:     cacheDir,
		runner:       runner,
		logger:       logger,
	}
}

// Favicons tints the favicon template with the site accent, derives the
// icon container and the PNG set and adds them to the build.
func (p *Pipeline) Favicons(ctx context.Context, site string, accent color.NRGBA, w *artifact.Writer) error {
	dir := filepath.Join(p.cacheDir, "favicon")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return derrors.WrapFatal(err, derrors.CategoryFileSystem, "creating favicon cache").WithContext("dir", dir)
	}

	masterPath := filepath.Join(dir, site+"-original.png")
	master, err := p.tintedMaster(masterPath, accent)
	if err != nil {
		return err
	}

	icoPath := filepath.Join(dir, site+".ico")
	if !exists(icoPath) {
		base := Resize(master, 32, 32)
		f, err := os.Create(icoPath)
		if err != nil {
			return derrors.WrapFatal(err, derrors.CategoryFileSystem, "writing favicon.ico").WithContext("path", icoPath)
		}
		err = writeICO(f, Resize(base, 16, 16), Resize(base, 24, 24), base)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return derrors.WrapFatal(err, derrors.CategoryFileSystem, "writing favicon.ico").WithContext("path", icoPath)
		}
	}
	if _, err := w.Write(artifact.FileTarget("favicon.ico", icoPath)); err != nil {
		return err
	}

	crush := p.runner.Available("pngcrush")
	if !crush {
		p.logger.Warn("pngcrush not available, favicons stay uncompressed", "site", site)
	}
	for _, size := range faviconSizes {
		sizedPath := filepath.Join(dir, fmt.Sprintf("%s-%d.png", site, size))
		if !exists(sizedPath) {
			interim := filepath.Join(dir, fmt.Sprintf("%s-%d-precrush.png", site, size))
			if err := savePNG(interim, Resize(master, size, size)); err != nil {
				return err
			}
			if err := p.crushInto(ctx, crush, interim, sizedPath); err != nil {
				return err
			}
		}
		target := fmt.Sprintf("assets/favicon-%d.png", size)
		if _, err := w.Write(artifact.FileTarget(target, sizedPath)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) tintedMaster(path string, accent color.NRGBA) (image.Image, error) {
	if exists(path) {
		return loadPNG(path)
	}
	template, err := loadPNG(filepath.Join(p.templatesDir, "favicon.png"))
	if err != nil {
		return nil, err
	}
	master := Tint(template, accent)
	if err := savePNG(path, master); err != nil {
		return nil, err
	}
	return master, nil
}

// ErrorPage composites the tinted overlay onto the base illustration and
// adds recompressed PNG and WebP renditions to the build. Renditions whose
// external tool is missing are skipped.
func (p *Pipeline) ErrorPage(ctx context.Context, site string, accent color.NRGBA, w *artifact.Writer) error {
	dir := filepath.Join(p.cacheDir, "illustrations")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return derrors.WrapFatal(err, derrors.CategoryFileSystem, "creating illustration cache").WithContext("dir", dir)
	}

	fullPath := filepath.Join(dir, "error-404-"+site+"-full.png")
	if !exists(fullPath) {
		base, err := loadPNG(filepath.Join(p.templatesDir, "error_404_base.png"))
		if err != nil {
			return err
		}
		overlay, err := loadPNG(filepath.Join(p.templatesDir, "error_404_overlay.png"))
		if err != nil {
			return err
		}
		if err := savePNG(fullPath, Composite(base, Tint(overlay, accent))); err != nil {
			return err
		}
	}

	optimizedPath := filepath.Join(dir, "error-404-"+site+"-optimized.png")
	if exists(optimizedPath) || p.runner.Available("convert") {
		if !exists(optimizedPath) {
			interim := filepath.Join(dir, "error-404-"+site+"-optimized-interim.png")
			_, err := p.runner.Run(ctx, "convert", fullPath,
				"+dither", "-colors", "256", "-alpha", "background", "PNG8:"+interim)
			if err != nil {
				return err
			}
			if err := p.crushInto(ctx, p.runner.Available("pngcrush"), interim, optimizedPath); err != nil {
				return err
			}
		}
		if _, err := w.Write(artifact.FileTarget("assets/error_404.png", optimizedPath)); err != nil {
			return err
		}
	} else {
		p.logger.Warn("convert not available, error page PNG skipped", "site", site)
	}

	webpPath := filepath.Join(dir, "error-404-"+site+"-optimized.webp")
	if exists(webpPath) || p.runner.Available("cwebp") {
		if !exists(webpPath) {
			_, err := p.runner.Run(ctx, "cwebp", "-preset", "drawing", "-q", "55", "-m", "6", fullPath, "-o", webpPath)
			if err != nil {
				return err
			}
		}
		if _, err := w.Write(artifact.FileTarget("assets/error_404.webp", webpPath)); err != nil {
			return err
		}
	} else {
		p.logger.Warn("cwebp not available, error page WebP skipped", "site", site)
	}
	return nil
}

// Thumbnails derives print preview renditions of the first PDF page at one,
// two and three times the base width and adds them to the build. Mostly
// monochrome pages are flattened to grayscale before compression. The
// reported dimensions are those of the largest rendition.
func (p *Pipeline) Thumbnails(ctx context.Context, pdfPath, name, kind string, w *artifact.Writer) (int, int, error) {
	dir := filepath.Join(p.cacheDir, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, 0, derrors.WrapFatal(err, derrors.CategoryFileSystem, "creating thumbnail cache").WithContext("dir", dir)
	}

	var lastPNG string
	for _, factor := range []int{1, 2, 3} {
		stem := name + "_thumbnail"
		if factor != 1 {
			stem += fmt.Sprintf("-%dx", factor)
		}
		pngPath := filepath.Join(dir, stem+".png")
		if !exists(pngPath) {
			if !p.runner.Available("convert") {
				return 0, 0, derrors.Warning(derrors.CategoryCollaborator, "convert not available, thumbnails skipped").
					WithContext("source", pdfPath)
			}
			interim := filepath.Join(dir, stem+"-precrush.png")
			_, err := p.runner.Run(ctx, "convert", "-density", "600", pdfPath+"[0]",
				"-alpha", "remove", "-resize", strconv.Itoa(thumbnailBaseWidth*factor), interim)
			if err != nil {
				return 0, 0, err
			}
			img, err := loadPNG(interim)
			if err != nil {
				return 0, 0, err
			}
			if TintQuotient(img) < 0.1 {
				if err := savePNG(interim, Grayscale(img)); err != nil {
					return 0, 0, err
				}
			}
			if err := p.crushInto(ctx, p.runner.Available("pngcrush"), interim, pngPath); err != nil {
				return 0, 0, err
			}
		}
		lastPNG = pngPath
		if _, err := w.Write(artifact.FileTarget("assets/"+stem+".png", pngPath)); err != nil {
			return 0, 0, err
		}

		webpPath := filepath.Join(dir, stem+".webp")
		if !exists(webpPath) && p.runner.Available("cwebp") {
			_, err := p.runner.Run(ctx, "cwebp", "-preset", "text", "-q", "35", "-m", "6", "-noalpha", pngPath, "-o", webpPath)
			if err != nil {
				return 0, 0, err
			}
		}
		if exists(webpPath) {
			if _, err := w.Write(artifact.FileTarget("assets/"+stem+".webp", webpPath)); err != nil {
				return 0, 0, err
			}
		}

		avifPath := filepath.Join(dir, stem+".avif")
		if !exists(avifPath) && p.runner.Available("cavif") {
			_, err := p.runner.Run(ctx, "cavif", "--quality", "35", pngPath, "-o", avifPath)
			if err != nil {
				return 0, 0, err
			}
		}
		if exists(avifPath) {
			if _, err := w.Write(artifact.FileTarget("assets/"+stem+".avif", avifPath)); err != nil {
				return 0, 0, err
			}
		}
	}

	largest, err := loadPNG(lastPNG)
	if err != nil {
		return 0, 0, err
	}
	bounds := largest.Bounds()
	return bounds.Dx(), bounds.Dy(), nil
}

// PageExtracts renders every PDF page to SVG and adds the extracts to the
// build. It reports how many pages were extracted.
func (p *Pipeline) PageExtracts(ctx context.Context, pdfPath, name, kind string, w *artifact.Writer) (int, error) {
	dir := filepath.Join(p.cacheDir, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, derrors.WrapFatal(err, derrors.CategoryFileSystem, "creating page extract cache").WithContext("dir", dir)
	}

	if !exists(filepath.Join(dir, name+"_page1.svg")) {
		if !p.runner.Available("pdf2svg") {
			return 0, derrors.Warning(derrors.CategoryCollaborator, "pdf2svg not available, page extracts skipped").
				WithContext("source", pdfPath)
		}
		pattern := filepath.Join(dir, name+"_page%d.svg")
		if _, err := p.runner.Run(ctx, "pdf2svg", pdfPath, pattern, "all"); err != nil {
			return 0, err
		}
	}

	pages, err := filepath.Glob(filepath.Join(dir, name+"_page*.svg"))
	if err != nil {
		return 0, derrors.WrapFatal(err, derrors.CategoryFileSystem, "listing page extracts").WithContext("name", name)
	}
	for _, page := range pages {
		target := "assets/" + filepath.Base(page)
		if _, err := w.Write(artifact.FileTarget(target, page)); err != nil {
			return 0, err
		}
	}
	return len(pages), nil
}

// crushInto moves the interim file to its final place, recompressing it
// when pngcrush is around.
func (p *Pipeline) crushInto(ctx context.Context, crush bool, interim, final string) error {
	if !crush {
		if err := os.Rename(interim, final); err != nil {
			return derrors.WrapFatal(err, derrors.CategoryFileSystem, "placing rendition").WithContext("path", final)
		}
		return nil
	}
	if _, err := p.runner.Run(ctx, "pngcrush", interim, final); err != nil {
		return err
	}
	if err := os.Remove(interim); err != nil {
		return derrors.WrapFatal(err, derrors.CategoryFileSystem, "removing interim rendition").WithContext("path", interim)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func loadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, derrors.WrapFatal(err, derrors.CategoryFileSystem, "opening image").WithContext("path", path)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, derrors.WrapFatal(err, derrors.CategoryData, "decoding image").WithContext("path", path)
	}
	return img, nil
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return derrors.WrapFatal(err, derrors.CategoryFileSystem, "writing image").WithContext("path", path)
	}
	err = png.Encode(f, img)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return derrors.WrapFatal(err, derrors.CategoryFileSystem, "writing image").WithContext("path", path)
	}
	return nil
}
