package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gogpu/flipbook"
	"github.com/gogpu/flipbook/decode"
	"github.com/gogpu/flipbook/flipfile"
)

var playCmd = &cobra.Command{
	Use:   "play [project.flip]",
	Short: "Play a comp headless and watch the cache work",
	Long: `play ticks through a comp at the given rate without displaying
anything, reporting once a second how the frame cache, preloader and decode
workers keep up. Without a project file it plays a built-in synthetic demo;
use --latency to make its decodes as slow as real footage.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

func runPlay(cmd *cobra.Command, args []string) error {
	var dec flipbook.Decoder
	if len(args) == 1 {
		dec = decode.NewFiles()
	} else {
		dec = decode.NewSynthetic(1920, 1080, nil).WithLatency(flagLatency)
	}
	player, err := flipbook.NewPlayer(playerOptions(dec)...)
	if err != nil {
		return err
	}
	defer player.Close()

	if len(args) == 1 {
		if err := flipfile.Apply(player.Project(), args[0]); err != nil {
			return err
		}
	} else {
		demoProject(player.Project())
	}
	comp := pickComp(player.Project(), flagComp)
	if comp == nil {
		return fmt.Errorf("flipplay: no comp to play")
	}
	player.SetActive(comp.ID(), flipbook.EvalComposite)

	fps := flagFPS
	if fps <= 0 {
		fps = 24
	}
	start, end := comp.Range()
	fmt.Printf("playing %q [%d, %d) at %g fps\n", comp.Name(), start, end, fps)

	tick := time.NewTicker(time.Duration(float64(time.Second) / fps))
	defer tick.Stop()

	var shown, late uint64
	lastReport := time.Now()
	for loop := int64(0); loop < flagLoops; loop++ {
		for f := start; f < end; f++ {
			<-tick.C
			fr := player.Tick(f)
			if fr != nil && fr.Status() == flipbook.StatusLoaded {
				shown++
			} else {
				late++
			}
			if time.Since(lastReport) >= time.Second {
				report(player, f, shown, late)
				lastReport = time.Now()
			}
		}
	}
	report(player, player.Playhead(), shown, late)
	return nil
}

// demoProject builds the built-in demo: one synthetic clip layered twice,
// the second copy offset and added on top at half strength.
func demoProject(p *flipbook.Project) {
	clip := p.NewSource("clip", flipbook.SourceRef{Path: "synthetic:checker"}, 0, 240)
	comp := p.NewComp("demo", 1920, 1080, 0, 240)

	if _, err := p.AddLayer(comp.ID(), clip.ID(), flipbook.EvalSource); err != nil {
		panic(err)
	}
	ghost, err := p.AddLayer(comp.ID(), clip.ID(), flipbook.EvalSource)
	if err != nil {
		panic(err)
	}
	_ = p.SetLayerOffset(comp.ID(), ghost.ID(), 12)
	_ = p.SetLayerAttr(comp.ID(), ghost.ID(), flipbook.AttrOpacity, flipbook.Float(0.5))
	_ = p.SetLayerAttr(comp.ID(), ghost.ID(), flipbook.AttrBlend, flipbook.String("add"))
}

func report(p *flipbook.Player, frame int64, shown, late uint64) {
	cs := p.CacheStats()
	ds := p.DecodeStats()
	fmt.Printf("frame %5d  shown %d late %d  cache %d frames %s of %s hit %.0f%%  decoded %d probed %d stale %d failed %d\n",
		frame, shown, late,
		cs.Entries, mib(cs.Usage), mib(cs.Ceiling), cs.HitRate*100,
		ds.Decoded, ds.Probed, ds.StaleSkipped, ds.Failed)
}

func mib(n int64) string {
	return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
}
