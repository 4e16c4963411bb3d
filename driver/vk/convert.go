// Copyright 2026 The RHI Authors. All rights reserved.

package vk

import (
	vk "github.com/goki/vulkan"

	"github.com/karlsen-gfx/rhi/driver"
)

func pixelFmt(pf driver.PixelFmt) vk.Format {
	switch pf {
	case driver.RGBA8un:
		return vk.FormatR8g8b8a8Unorm
	case driver.RGBA8n:
		return vk.FormatR8g8b8a8Snorm
	case driver.RGBA8sRGB:
		return vk.FormatR8g8b8a8Srgb
	case driver.BGRA8un:
		return vk.FormatB8g8r8a8Unorm
	case driver.BGRA8sRGB:
		return vk.FormatB8g8r8a8Srgb
	case driver.RG8un:
		return vk.FormatR8g8Unorm
	case driver.RG8n:
		return vk.FormatR8g8Snorm
	case driver.R8un:
		return vk.FormatR8Unorm
	case driver.R8n:
		return vk.FormatR8Snorm
	case driver.RGBA16f:
		return vk.FormatR16g16b16a16Sfloat
	case driver.RG16f:
		return vk.FormatR16g16Sfloat
	case driver.R16f:
		return vk.FormatR16Sfloat
	case driver.RGBA32f:
		return vk.FormatR32g32b32a32Sfloat
	case driver.RG32f:
		return vk.FormatR32g32Sfloat
	case driver.R32f:
		return vk.FormatR32Sfloat
	case driver.D16un:
		return vk.FormatD16Unorm
	case driver.D32f:
		return vk.FormatD32Sfloat
	case driver.S8ui:
		return vk.FormatS8Uint
	case driver.D24unS8ui:
		return vk.FormatD24UnormS8Uint
	case driver.D32fS8ui:
		return vk.FormatD32SfloatS8Uint
	default:
		return vk.FormatUndefined
	}
}

func vertexFmt(f driver.VertexFmt) vk.Format {
	switch f {
	case driver.Int8:
		return vk.FormatR8Sint
	case driver.Int8x2:
		return vk.FormatR8g8Sint
	case driver.Int8x3:
		return vk.FormatR8g8b8Sint
	case driver.Int8x4:
		return vk.FormatR8g8b8a8Sint
	case driver.Int16:
		return vk.FormatR16Sint
	case driver.Int16x2:
		return vk.FormatR16g16Sint
	case driver.Int16x3:
		return vk.FormatR16g16b16Sint
	case driver.Int16x4:
		return vk.FormatR16g16b16a16Sint
	case driver.Int32:
		return vk.FormatR32Sint
	case driver.Int32x2:
		return vk.FormatR32g32Sint
	case driver.Int32x3:
		return vk.FormatR32g32b32Sint
	case driver.Int32x4:
		return vk.FormatR32g32b32a32Sint
	case driver.UInt8:
		return vk.FormatR8Uint
	case driver.UInt8x2:
		return vk.FormatR8g8Uint
	case driver.UInt8x3:
		return vk.FormatR8g8b8Uint
	case driver.UInt8x4:
		return vk.FormatR8g8b8a8Uint
	case driver.UInt16:
		return vk.FormatR16Uint
	case driver.UInt16x2:
		return vk.FormatR16g16Uint
	case driver.UInt16x3:
		return vk.FormatR16g16b16Uint
	case driver.UInt16x4:
		return vk.FormatR16g16b16a16Uint
	case driver.UInt32:
		return vk.FormatR32Uint
	case driver.UInt32x2:
		return vk.FormatR32g32Uint
	case driver.UInt32x3:
		return vk.FormatR32g32b32Uint
	case driver.UInt32x4:
		return vk.FormatR32g32b32a32Uint
	case driver.Float32:
		return vk.FormatR32Sfloat
	case driver.Float32x2:
		return vk.FormatR32g32Sfloat
	case driver.Float32x3:
		return vk.FormatR32g32b32Sfloat
	case driver.Float32x4:
		return vk.FormatR32g32b32a32Sfloat
	default:
		return vk.FormatUndefined
	}
}

func bufferUsage(usg driver.Usage) vk.BufferUsageFlags {
	var f vk.BufferUsageFlagBits
	f |= vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit
	if usg&driver.UShaderRead != 0 || usg&driver.UShaderWrite != 0 {
		f |= vk.BufferUsageStorageBufferBit
	}
	if usg&driver.UShaderConst != 0 {
		f |= vk.BufferUsageUniformBufferBit
	}
	if usg&driver.UVertexData != 0 {
		f |= vk.BufferUsageVertexBufferBit
	}
	if usg&driver.UIndexData != 0 {
		f |= vk.BufferUsageIndexBufferBit
	}
	return vk.BufferUsageFlags(f)
}

func imageUsage(usg driver.Usage) vk.ImageUsageFlags {
	var f vk.ImageUsageFlagBits
	f |= vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit
	if usg&driver.UShaderSample != 0 {
		f |= vk.ImageUsageSampledBit
	}
	if usg&driver.UShaderRead != 0 || usg&driver.UShaderWrite != 0 {
		f |= vk.ImageUsageStorageBit
	}
	if usg&driver.URenderTarget != 0 {
		f |= vk.ImageUsageColorAttachmentBit
	}
	return vk.ImageUsageFlags(f)
}

func imageLayout(l driver.Layout) vk.ImageLayout {
	switch l {
	case driver.LUndefined:
		return vk.ImageLayoutUndefined
	case driver.LCommon:
		return vk.ImageLayoutGeneral
	case driver.LColorTarget:
		return vk.ImageLayoutColorAttachmentOptimal
	case driver.LDSTarget:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case driver.LDSRead:
		return vk.ImageLayoutDepthStencilReadOnlyOptimal
	case driver.LResolveSrc, driver.LCopySrc:
		return vk.ImageLayoutTransferSrcOptimal
	case driver.LResolveDst, driver.LCopyDst:
		return vk.ImageLayoutTransferDstOptimal
	case driver.LShaderRead:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case driver.LPresent:
		return vk.ImageLayoutPresentSrc
	default:
		return vk.ImageLayoutUndefined
	}
}

func accessFlags(a driver.Access) vk.AccessFlags {
	var f vk.AccessFlagBits
	if a&driver.AVertexBufRead != 0 {
		f |= vk.AccessVertexAttributeReadBit
	}
	if a&driver.AIndexBufRead != 0 {
		f |= vk.AccessIndexReadBit
	}
	if a&driver.AColorRead != 0 {
		f |= vk.AccessColorAttachmentReadBit
	}
	if a&driver.AColorWrite != 0 {
		f |= vk.AccessColorAttachmentWriteBit
	}
	if a&driver.ADSRead != 0 {
		f |= vk.AccessDepthStencilAttachmentReadBit
	}
	if a&driver.ADSWrite != 0 {
		f |= vk.AccessDepthStencilAttachmentWriteBit
	}
	if a&driver.ACopyRead != 0 {
		f |= vk.AccessTransferReadBit
	}
	if a&driver.ACopyWrite != 0 {
		f |= vk.AccessTransferWriteBit
	}
	if a&driver.AShaderRead != 0 {
		f |= vk.AccessShaderReadBit
	}
	if a&driver.AShaderWrite != 0 {
		f |= vk.AccessShaderWriteBit
	}
	return vk.AccessFlags(f)
}

func pipelineStage(s driver.Sync) vk.PipelineStageFlags {
	if s == driver.SNone {
		return vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
	var f vk.PipelineStageFlagBits
	if s&driver.SVertexInput != 0 {
		f |= vk.PipelineStageVertexInputBit
	}
	if s&driver.SVertexShading != 0 {
		f |= vk.PipelineStageVertexShaderBit
	}
	if s&driver.SFragmentShading != 0 {
		f |= vk.PipelineStageFragmentShaderBit
	}
	if s&driver.SComputeShading != 0 {
		f |= vk.PipelineStageComputeShaderBit
	}
	if s&driver.SColorOutput != 0 {
		f |= vk.PipelineStageColorAttachmentOutputBit
	}
	if s&driver.SDSOutput != 0 {
		f |= vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit
	}
	if s&driver.SDraw != 0 {
		f |= vk.PipelineStageDrawIndirectBit
	}
	if s&driver.SCopy != 0 {
		f |= vk.PipelineStageTransferBit
	}
	if s&driver.SAll != 0 {
		f |= vk.PipelineStageAllCommandsBit
	}
	return vk.PipelineStageFlags(f)
}

func loadOp(o driver.LoadOp) vk.AttachmentLoadOp {
	switch o {
	case driver.LClear:
		return vk.AttachmentLoadOpClear
	case driver.LLoad:
		return vk.AttachmentLoadOpLoad
	default:
		return vk.AttachmentLoadOpDontCare
	}
}

func storeOp(o driver.StoreOp) vk.AttachmentStoreOp {
	if o == driver.SStore {
		return vk.AttachmentStoreOpStore
	}
	return vk.AttachmentStoreOpDontCare
}

func topology(t driver.Topology) vk.PrimitiveTopology {
	switch t {
	case driver.TPoint:
		return vk.PrimitiveTopologyPointList
	case driver.TLine:
		return vk.PrimitiveTopologyLineList
	case driver.TLnStrip:
		return vk.PrimitiveTopologyLineStrip
	case driver.TTriStrip:
		return vk.PrimitiveTopologyTriangleStrip
	default:
		return vk.PrimitiveTopologyTriangleList
	}
}

func cullMode(c driver.CullMode) vk.CullModeFlags {
	switch c {
	case driver.CFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case driver.CBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	default:
		return vk.CullModeFlags(vk.CullModeNone)
	}
}

func fillMode(f driver.FillMode) vk.PolygonMode {
	if f == driver.FLines {
		return vk.PolygonModeLine
	}
	return vk.PolygonModeFill
}

func cmpFunc(c driver.CmpFunc) vk.CompareOp {
	switch c {
	case driver.CLess:
		return vk.CompareOpLess
	case driver.CEqual:
		return vk.CompareOpEqual
	case driver.CLessEqual:
		return vk.CompareOpLessOrEqual
	case driver.CGreater:
		return vk.CompareOpGreater
	case driver.CNotEqual:
		return vk.CompareOpNotEqual
	case driver.CGreaterEqual:
		return vk.CompareOpGreaterOrEqual
	case driver.CAlways:
		return vk.CompareOpAlways
	default:
		return vk.CompareOpNever
	}
}

func stencilOp(o driver.StencilOp) vk.StencilOp {
	switch o {
	case driver.SZero:
		return vk.StencilOpZero
	case driver.SReplace:
		return vk.StencilOpReplace
	case driver.SIncClamp:
		return vk.StencilOpIncrementAndClamp
	case driver.SDecClamp:
		return vk.StencilOpDecrementAndClamp
	case driver.SInvert:
		return vk.StencilOpInvert
	case driver.SIncWrap:
		return vk.StencilOpIncrementAndWrap
	case driver.SDecWrap:
		return vk.StencilOpDecrementAndWrap
	default:
		return vk.StencilOpKeep
	}
}

func blendOp(o driver.BlendOp) vk.BlendOp {
	switch o {
	case driver.BSubtract:
		return vk.BlendOpSubtract
	case driver.BRevSubtract:
		return vk.BlendOpReverseSubtract
	case driver.BMin:
		return vk.BlendOpMin
	case driver.BMax:
		return vk.BlendOpMax
	default:
		return vk.BlendOpAdd
	}
}

func blendFac(f driver.BlendFac) vk.BlendFactor {
	switch f {
	case driver.BOne:
		return vk.BlendFactorOne
	case driver.BSrcColor:
		return vk.BlendFactorSrcColor
	case driver.BInvSrcColor:
		return vk.BlendFactorOneMinusSrcColor
	case driver.BSrcAlpha:
		return vk.BlendFactorSrcAlpha
	case driver.BInvSrcAlpha:
		return vk.BlendFactorOneMinusSrcAlpha
	case driver.BDstColor:
		return vk.BlendFactorDstColor
	case driver.BInvDstColor:
		return vk.BlendFactorOneMinusDstColor
	case driver.BDstAlpha:
		return vk.BlendFactorDstAlpha
	case driver.BInvDstAlpha:
		return vk.BlendFactorOneMinusDstAlpha
	case driver.BSrcAlphaSaturated:
		return vk.BlendFactorSrcAlphaSaturate
	case driver.BBlendColor:
		return vk.BlendFactorConstantColor
	case driver.BInvBlendColor:
		return vk.BlendFactorOneMinusConstantColor
	default:
		return vk.BlendFactorZero
	}
}

func colorComponents(m driver.ColorMask) vk.ColorComponentFlags {
	var f vk.ColorComponentFlagBits
	if m&driver.CRed != 0 {
		f |= vk.ColorComponentRBit
	}
	if m&driver.CGreen != 0 {
		f |= vk.ColorComponentGBit
	}
	if m&driver.CBlue != 0 {
		f |= vk.ColorComponentBBit
	}
	if m&driver.CAlpha != 0 {
		f |= vk.ColorComponentABit
	}
	return vk.ColorComponentFlags(f)
}

func filter(f driver.Filter) vk.Filter {
	if f == driver.FLinear {
		return vk.FilterLinear
	}
	return vk.FilterNearest
}

func mipmapMode(f driver.Filter) vk.SamplerMipmapMode {
	if f == driver.FLinear {
		return vk.SamplerMipmapModeLinear
	}
	return vk.SamplerMipmapModeNearest
}

func addrMode(a driver.AddrMode) vk.SamplerAddressMode {
	switch a {
	case driver.AMirror:
		return vk.SamplerAddressModeMirroredRepeat
	case driver.AClamp:
		return vk.SamplerAddressModeClampToEdge
	default:
		return vk.SamplerAddressModeRepeat
	}
}

func indexType(f driver.IndexFmt) vk.IndexType {
	if f == driver.Index32 {
		return vk.IndexTypeUint32
	}
	return vk.IndexTypeUint16
}
