// synth_render.go - Batch/quantum render buffering

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/FMStation
License: GPLv3 or later
*/

package main

// RenderPipeline reconciles the host's fixed quantum size with the
// engine's preferred batch size. One pre-sized scratch buffer is reused
// across calls; the engine renders at most once per batch-worth of quanta,
// and a partial tail segment is fully consumed before the next refill.
// Owned by the render context; nothing here locks or allocates.
type RenderPipeline struct {
	engine *FMEngine
	batch  []float32
	cursor int // read position into batch; len(batch) means drained

	renderCalls uint64
}

// NewRenderPipeline creates a pipeline around an instantiated engine.
// Allocation of the scratch buffer happens here, during Loading, never in
// the periodic callback.
func NewRenderPipeline(engine *FMEngine, batchFrames int) *RenderPipeline {
	batch := make([]float32, batchFrames)
	return &RenderPipeline{
		engine: engine,
		batch:  batch,
		cursor: len(batch), // first Fill triggers a render
	}
}

// Fill copies the next len(dst) samples into dst, refilling the scratch
// buffer from the engine only when it is drained.
func (rp *RenderPipeline) Fill(dst []float32) {
	filled := 0
	for filled < len(dst) {
		if rp.cursor >= len(rp.batch) {
			rp.engine.Render(rp.batch)
			rp.renderCalls++
			rp.cursor = 0
		}
		n := copy(dst[filled:], rp.batch[rp.cursor:])
		rp.cursor += n
		filled += n
	}
}

// RenderCalls returns how many times the engine has been asked for a
// batch. Diagnostic only.
func (rp *RenderPipeline) RenderCalls() uint64 {
	return rp.renderCalls
}

// fillSilence zeroes dst. The fast path for every state in which the
// engine must not be touched.
func fillSilence(dst []float32) {
	for i := range dst {
		dst[i] = 0
	}
}
