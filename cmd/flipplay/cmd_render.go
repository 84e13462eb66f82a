package main

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/flipbook"
	"github.com/gogpu/flipbook/decode"
	"github.com/gogpu/flipbook/flipfile"
)

var renderCmd = &cobra.Command{
	Use:   "render project.flip outdir",
	Short: "Render a comp to numbered PNG frames",
	Long: `render evaluates a comp frame by frame with inline decoding and
writes each composite as outdir/<comp>.<frame>.png. Frames that fail to
decode are reported and skipped; the command exits non-zero if any did.`,
	Args: cobra.ExactArgs(2),
	RunE: runRender,
}

func runRender(cmd *cobra.Command, args []string) error {
	// Inline decoding: a batch render wants every frame finished, not a
	// warm cache.
	opts := append(playerOptions(decode.NewFiles()), flipbook.WithWorkers(0))
	player, err := flipbook.NewPlayer(opts...)
	if err != nil {
		return err
	}
	defer player.Close()

	if err := flipfile.Apply(player.Project(), args[0]); err != nil {
		return err
	}
	comp := pickComp(player.Project(), flagComp)
	if comp == nil {
		return fmt.Errorf("flipplay: no comp to render")
	}
	player.SetActive(comp.ID(), flipbook.EvalComposite)

	start, end := comp.Range()
	if cmd.Flags().Changed("start") {
		start = flagStart
	}
	if cmd.Flags().Changed("end") {
		end = flagEnd
	}
	if end <= start {
		return fmt.Errorf("flipplay: empty frame range [%d, %d)", start, end)
	}

	outDir := args[1]
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	var written, failed int64
	for f := start; f < end; f++ {
		fr := player.Tick(f)
		if fr == nil || fr.Status() != flipbook.StatusLoaded {
			failed++
			if fr != nil && fr.Err() != nil {
				fmt.Fprintf(os.Stderr, "frame %d: %v\n", f, fr.Err())
			} else {
				fmt.Fprintf(os.Stderr, "frame %d: not loaded\n", f)
			}
			continue
		}
		path := filepath.Join(outDir, fmt.Sprintf("%s.%04d.png", comp.Name(), f))
		if err := writeRendered(fr.Pixels(), path, comp.Name(), f); err != nil {
			return err
		}
		written++
	}

	fmt.Printf("rendered %d frames to %s\n", written, outDir)
	if failed > 0 {
		return fmt.Errorf("flipplay: %d frames failed", failed)
	}
	return nil
}

func writeRendered(pix *flipbook.Pixmap, path, name string, frame int64) error {
	if !flagBurnIn {
		return pix.SavePNG(path)
	}
	img := pix.ToImage()
	stampLabel(img, fmt.Sprintf("%s %04d", name, frame))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// stampLabel draws the label in the top-left corner over a dark bar so the
// text stays readable on bright footage.
func stampLabel(img *image.RGBA, label string) {
	face := basicfont.Face7x13
	w := font.MeasureString(face, label).Ceil()
	bar := image.Rect(0, 0, w+12, face.Height+8)
	draw.Draw(img, bar.Intersect(img.Bounds()), image.NewUniform(color.RGBA{0, 0, 0, 180}), image.Point{}, draw.Over)

	d := font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(6, face.Ascent+4),
	}
	d.DrawString(label)
}
