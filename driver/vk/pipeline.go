// Copyright 2026 The RHI Authors. All rights reserved.

package vk

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/karlsen-gfx/rhi/driver"
)

// NewPipeline implements driver.GPU.
func (g *GPU) NewPipeline(state any) (driver.Pipeline, error) {
	switch s := state.(type) {
	case *driver.GraphState:
		return g.newGraphPipeline(s)
	case *driver.CompState:
		return g.newCompPipeline(s)
	default:
		return nil, fmt.Errorf("vk: NewPipeline: unexpected state type %T", state)
	}
}

// Pipeline implements driver.Pipeline over a VkPipeline.
type Pipeline struct {
	gpu *GPU
	pl  vk.Pipeline
}

func (p *Pipeline) Destroy() {
	vk.DestroyPipeline(p.gpu.dev, p.pl, nil)
	*p = Pipeline{}
}

func shaderStage(fn driver.ShaderFunc, stage vk.ShaderStageFlagBits) vk.PipelineShaderStageCreateInfo {
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: fn.Code.(*ShaderCode).mod,
		PName:  cStr(fn.Name),
	}
}

// cStr returns a NUL-terminated copy of s, as VkPipelineShaderStageCreateInfo.PName
// and similar C-string fields require.
func cStr(s string) string { return s + "\x00" }

func (g *GPU) newGraphPipeline(s *driver.GraphState) (driver.Pipeline, error) {
	stages := []vk.PipelineShaderStageCreateInfo{
		shaderStage(s.VertFunc, vk.ShaderStageVertexBit),
		shaderStage(s.FragFunc, vk.ShaderStageFragmentBit),
	}

	bindings := make([]vk.VertexInputBindingDescription, len(s.Input))
	attrs := make([]vk.VertexInputAttributeDescription, len(s.Input))
	for i, in := range s.Input {
		bindings[i] = vk.VertexInputBindingDescription{
			Binding:   uint32(i),
			Stride:    uint32(in.Stride),
			InputRate: vk.VertexInputRateVertex,
		}
		attrs[i] = vk.VertexInputAttributeDescription{
			Location: uint32(in.Nr),
			Binding:  uint32(i),
			Format:   vertexFmt(in.Format),
		}
	}
	vertInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attrs)),
		PVertexAttributeDescriptions:    attrs,
	}

	inputAsm := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: topology(s.Topology),
	}

	// Viewport/scissor counts are fixed at pipeline-creation time but
	// their actual values are set dynamically per CmdBuffer.SetViewport
	// / SetScissor, matching the dynamic-state approach every example
	// backend in this module's ecosystem uses to avoid baking window
	// size into the pipeline.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	dynStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor, vk.DynamicStateBlendConstants, vk.DynamicStateStencilReference}
	dyn := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynStates)),
		PDynamicStates:    dynStates,
	}

	raster := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: fillMode(s.Raster.Fill),
		CullMode:    cullMode(s.Raster.Cull),
		FrontFace:   frontFace(s.Raster.Clockwise),
		LineWidth:   1,
	}
	if s.Raster.DepthBias {
		raster.DepthBiasEnable = vk.True
		raster.DepthBiasConstantFactor = s.Raster.BiasValue
		raster.DepthBiasSlopeFactor = s.Raster.BiasSlope
		raster.DepthBiasClamp = s.Raster.BiasClamp
	}

	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: sampleCount(max(s.Samples, 1)),
	}

	ds := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vk.Bool32(boolToInt(s.DS.DepthTest)),
		DepthWriteEnable: vk.Bool32(boolToInt(s.DS.DepthWrite)),
		DepthCompareOp:   cmpFunc(s.DS.DepthCmp),
		StencilTestEnable: vk.Bool32(boolToInt(s.DS.StencilTest)),
		Front:            stencilState(s.DS.Front),
		Back:             stencilState(s.DS.Back),
	}

	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, max(len(s.Blend.Color), 1))
	for i := range blendAttachments {
		cb := driver.ColorBlend{WriteMask: driver.CAll}
		if i < len(s.Blend.Color) && (s.Blend.IndependentBlend || i == 0) {
			cb = s.Blend.Color[i]
		} else if len(s.Blend.Color) > 0 {
			cb = s.Blend.Color[0]
		}
		blendAttachments[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable:         vk.Bool32(boolToInt(cb.Blend)),
			ColorWriteMask:      colorComponents(cb.WriteMask),
			ColorBlendOp:        blendOp(cb.Op[0]),
			SrcColorBlendFactor: blendFac(cb.SrcFac[0]),
			DstColorBlendFactor: blendFac(cb.DstFac[0]),
			AlphaBlendOp:        blendOp(cb.Op[1]),
			SrcAlphaBlendFactor: blendFac(cb.SrcFac[1]),
			DstAlphaBlendFactor: blendFac(cb.DstFac[1]),
		}
	}
	blend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertInput,
		PInputAssemblyState: &inputAsm,
		PViewportState:      &viewportState,
		PRasterizationState: &raster,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &ds,
		PColorBlendState:    &blend,
		PDynamicState:       &dyn,
		Layout:              s.Desc.(*DescTable).layout,
		RenderPass:          s.Pass.(*RenderPass).pass,
		Subpass:             uint32(s.Subpass),
	}
	pls := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(g.dev, nil, 1, []vk.GraphicsPipelineCreateInfo{info}, nil, pls); res != vk.Success {
		return nil, resultErr("CreateGraphicsPipelines", res)
	}
	return &Pipeline{gpu: g, pl: pls[0]}, nil
}

func (g *GPU) newCompPipeline(s *driver.CompState) (driver.Pipeline, error) {
	info := vk.ComputePipelineCreateInfo{
		SType:  vk.StructureTypeComputePipelineCreateInfo,
		Stage:  shaderStage(s.Func, vk.ShaderStageComputeBit),
		Layout: s.Desc.(*DescTable).layout,
	}
	pls := make([]vk.Pipeline, 1)
	if res := vk.CreateComputePipelines(g.dev, nil, 1, []vk.ComputePipelineCreateInfo{info}, nil, pls); res != vk.Success {
		return nil, resultErr("CreateComputePipelines", res)
	}
	return &Pipeline{gpu: g, pl: pls[0]}, nil
}

func frontFace(clockwise bool) vk.FrontFace {
	if clockwise {
		return vk.FrontFaceClockwise
	}
	return vk.FrontFaceCounterClockwise
}

func stencilState(s driver.StencilT) vk.StencilOpState {
	return vk.StencilOpState{
		FailOp:    stencilOp(s.DSFail[0]),
		DepthFailOp: stencilOp(s.DSFail[1]),
		PassOp:    stencilOp(s.Pass),
		CompareOp: cmpFunc(s.Cmp),
		CompareMask: s.ReadMask,
		WriteMask:   s.WriteMask,
	}
}
