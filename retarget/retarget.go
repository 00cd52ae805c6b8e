package retarget

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/avafab/shapeport/rig"
	"github.com/avafab/shapeport/utils"
)

// Options tune the name-based bone matching. Skip forces bones
// unmatched (the usual case is a simplified hand that should ignore
// finger curves); Rename translates a target bone name to the source
// name to look up, for rigs whose vendors prefix names differently.
type Options struct {
	Skip   map[string]bool
	Rename map[string]string
}

// Report collects per-run outcomes for caller-side logging. The
// engine itself never logs.
type Report struct {
	Matched    []string
	Unmatched  []string
	Degenerate []string
}

// link is one resolved target bone: the source bone index it follows,
// or -1 when it stays at rest.
type link struct {
	src int
}

const unmatched = -1

func resolveLinks(source, target *rig.Skeleton, opts Options, report *Report) []link {
	links := make([]link, target.Len())
	for i := 0; i < target.Len(); i++ {
		links[i].src = unmatched

		name := target.Bone(i).Name
		srcName := name
		if opts.Rename != nil {
			if renamed, ok := opts.Rename[name]; ok {
				srcName = renamed
			}
		}
		if opts.Skip[name] || opts.Skip[srcName] {
			report.Unmatched = append(report.Unmatched, name)
			continue
		}
		si, ok := source.Lookup(srcName)
		if !ok {
			report.Unmatched = append(report.Unmatched, name)
			continue
		}
		if !utils.QuatValid(source.Bone(si).Rest.Rotation) || !utils.QuatValid(target.Bone(i).Rest.Rotation) {
			report.Degenerate = append(report.Degenerate, name)
			continue
		}
		links[i].src = si
		report.Matched = append(report.Matched, name)
	}
	return links
}

// WorldDelta retargets a source clip onto the target skeleton by
// preserving each joint's change-from-rest in world space:
//
//	delta = srcWorldAnim * srcWorldRest^-1
//	targetWorldAnim = delta * targetWorldRest
//	targetLocal = targetParentWorldAnim^-1 * targetWorldAnim
//	poseDelta = targetLocalRest^-1 * targetLocal
//
// Bones are processed root-to-leaf so a bone always resolves against
// its parent's already-animated world rotation. Unmatched bones keep
// an identity pose delta but still chain their rest rotation through,
// so descendants of an unmatched bone stay correct.
func WorldDelta(source, target *rig.Skeleton, clip *rig.Clip, opts Options) (*rig.Clip, *Report) {
	report := &Report{}
	links := resolveLinks(source, target, opts, report)

	srcWorldRest := source.WorldRestRotations()
	dstWorldRest := target.WorldRestRotations()

	srcWorldRestInv := make([]mgl32.Quat, len(srcWorldRest))
	for i, q := range srcWorldRest {
		srcWorldRestInv[i] = q.Inverse()
	}

	out := &rig.Clip{
		Name:       clip.Name,
		FrameStart: clip.FrameStart,
		FrameEnd:   clip.FrameEnd,
		FPS:        clip.FPS,
		Frames:     make([]rig.Pose, clip.FrameCount()),
	}

	dstWorldAnim := make([]mgl32.Quat, target.Len())
	for fi := range clip.Frames {
		srcWorldAnim := rig.WorldRotations(source, clip.Frames[fi])

		pose := rig.NewPose()
		for _, i := range target.Order() {
			b := target.Bone(i)

			parentWorld := mgl32.QuatIdent()
			if b.Parent != rig.NoParent {
				parentWorld = dstWorldAnim[b.Parent]
			}

			localRest := mgl32.QuatIdent()
			if utils.QuatValid(b.Rest.Rotation) {
				localRest = b.Rest.Rotation.Normalize()
			}
			si := links[i].src
			if si == unmatched {
				dstWorldAnim[i] = parentWorld.Mul(localRest).Normalize()
				continue
			}

			delta := srcWorldAnim[si].Mul(srcWorldRestInv[si])
			worldAnim := delta.Mul(dstWorldRest[i]).Normalize()
			local := parentWorld.Inverse().Mul(worldAnim)
			pose.Set(b.Name, localRest.Inverse().Mul(local).Normalize())
			dstWorldAnim[i] = worldAnim
		}
		out.Frames[fi] = pose
	}

	alignFrames(out)
	return out, report
}

// ByBasisCorrection is the cheap alternative: a constant per-bone
// change of basis applied to each frame's source pose delta by
// conjugation, with no per-frame world recomposition. It assumes the
// source deltas are expressed relative to each bone's own rest and
// degrades when the two hierarchies differ in shape, not just in bone
// roll. WorldDelta is the canonical form.
func ByBasisCorrection(source, target *rig.Skeleton, clip *rig.Clip, opts Options) (*rig.Clip, *Report) {
	report := &Report{}
	links := resolveLinks(source, target, opts, report)

	srcWorldRest := source.WorldRestRotations()
	dstWorldRest := target.WorldRestRotations()

	corrections := make([]mgl32.Quat, target.Len())
	for i := range links {
		if si := links[i].src; si != unmatched {
			corrections[i] = dstWorldRest[i].Mul(srcWorldRest[si].Inverse()).Normalize()
		}
	}

	out := &rig.Clip{
		Name:       clip.Name,
		FrameStart: clip.FrameStart,
		FrameEnd:   clip.FrameEnd,
		FPS:        clip.FPS,
		Frames:     make([]rig.Pose, clip.FrameCount()),
	}

	for fi := range clip.Frames {
		srcPose := clip.Frames[fi]

		pose := rig.NewPose()
		for i := range links {
			si := links[i].src
			if si == unmatched {
				continue
			}
			b := target.Bone(i)
			c := corrections[i]
			srcDelta := srcPose.Rotation(source.Bone(si).Name)
			pose.Set(b.Name, c.Mul(srcDelta).Mul(c.Inverse()).Normalize())
		}
		out.Frames[fi] = pose
	}

	alignFrames(out)
	return out, report
}

// alignFrames sign-aligns every bone's quaternion track frame to
// frame. Double-cover flips are invisible in pose space but make
// linear samplers of a baked curve spin the long way.
func alignFrames(clip *rig.Clip) {
	prev := make(map[string]mgl32.Quat)
	for _, pose := range clip.Frames {
		for name, q := range pose {
			if p, ok := prev[name]; ok {
				q = utils.AlignQuat(p, q)
				pose[name] = q
			}
			prev[name] = q
		}
	}
}
