package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/avafab/shapeport/config"
	"github.com/avafab/shapeport/export"
	"github.com/avafab/shapeport/knn"
	"github.com/avafab/shapeport/morph"
	"github.com/avafab/shapeport/retarget"
	"github.com/avafab/shapeport/skin"
	"github.com/avafab/shapeport/topo"
	"github.com/avafab/shapeport/utils"
	"github.com/avafab/shapeport/vmap"
)

func main() {
	var out, fbxOut, configPath, fitPath, clipName string
	var dump bool
	var seed int64
	flag.StringVar(&out, "out", "shapeport_demo.glb", "Output glb path")
	flag.StringVar(&fbxOut, "fbx", "", "Also write the animation take as binary fbx")
	flag.StringVar(&configPath, "config", "", "Tunables yaml, defaults when empty")
	flag.StringVar(&fitPath, "fit", "", "Proxy-fitting file overriding the demo correspondence map")
	flag.StringVar(&clipName, "name", "", "Clip name, generated when empty")
	flag.BoolVar(&dump, "dump", false, "Dump the transfer reports")
	flag.Int64Var(&seed, "seed", 1, "Demo mesh jitter seed")
	flag.Parse()

	runId := uuid.New()
	log.Printf("run %v", runId)

	tunables := config.Default()
	if configPath != "" {
		var err error
		if tunables, err = config.Load(configPath); err != nil {
			log.Fatal(err)
		}
	}

	demo, err := NewDemo(seed)
	if err != nil {
		log.Fatal(err)
	}

	corr := demo.Corr
	if fitPath != "" {
		f, err := os.Open(fitPath)
		if err != nil {
			log.Fatal(err)
		}
		fit, err := vmap.ReadFitting(f)
		f.Close()
		if err != nil {
			log.Fatal(err)
		}
		if fit.Map.Len() != demo.TargetMesh.VertexCount() {
			log.Fatalf("fitting %q covers %d vertices, target mesh has %d",
				fitPath, fit.Map.Len(), demo.TargetMesh.VertexCount())
		}
		log.Printf("fitting %q: %d entries, %d exclusion groups", fit.Name, fit.Map.Len(), len(fit.Excluded))
		corr = fit.Map
	}

	if clipName == "" {
		var rng utils.RandomNameGenerator
		clipName = rng.RandomName()
	}
	demo.Clip.Name = clipName

	clip, clipReport := retarget.WorldDelta(demo.Source, demo.Target, demo.Clip, retarget.Options{
		Skip:   demo.Skip,
		Rename: demo.Rename,
	})
	log.Printf("retarget %q: %d matched, %d unmatched, %d degenerate",
		clip.Name, len(clipReport.Matched), len(clipReport.Unmatched), len(clipReport.Degenerate))

	graph, err := topo.NewGraph(demo.TargetMesh.VertexCount(), demo.TargetMesh.Faces)
	if err != nil {
		log.Fatal(err)
	}
	srcIndex := knn.NewIndex(demo.SourceMesh.Positions)

	morphs, morphReport, err := morph.Transfer(demo.Morphs, corr, graph, srcIndex,
		demo.TargetMesh.Positions, tunables.Morph)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("morphs: %d transferred, %d dropped, %d clamped, %d fallbacks",
		len(morphReport.Transferred), len(morphReport.Dropped), morphReport.Clamped, morphReport.Fallbacks)

	weights, skinReport, err := skin.Transfer(demo.Weights, corr, graph, demo.Target, tunables.Skin)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("weights: %d weighted, %d unweighted, %d boundary-shifted",
		skinReport.Weighted, skinReport.Unweighted, skinReport.Shifted)
	if len(skinReport.MissingBones) != 0 {
		log.Printf("weights reference bones missing from the target: %v", skinReport.MissingBones)
	}

	if dump {
		utils.LogDump(clipReport, morphReport, skinReport)
	}

	scene := &export.Scene{
		Name:     clipName,
		Skeleton: demo.Target,
		Mesh:     demo.TargetMesh,
		Weights:  weights,
		Morphs:   morphs,
		Clip:     clip,
		RunID:    runId,
	}

	f, err := os.Create(out)
	if err != nil {
		log.Fatal(err)
	}
	if err := export.BakeGLTF(f, scene); err != nil {
		f.Close()
		log.Fatal(err)
	}
	if err := f.Close(); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %v", out)

	tunablesOut := strings.TrimSuffix(out, ".glb") + ".yaml"
	if err := config.Save(tunablesOut, tunables); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %v", tunablesOut)

	if fbxOut != "" {
		f, err := os.Create(fbxOut)
		if err != nil {
			log.Fatal(err)
		}
		if err := export.BakeFBX(f, scene); err != nil {
			f.Close()
			log.Fatal(err)
		}
		if err := f.Close(); err != nil {
			log.Fatal(err)
		}
		log.Printf("wrote %v", fbxOut)
	}
}
