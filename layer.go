package stegocrypt

// Layer identifies one stage of the pipeline.
type Layer uint8

// Layers in forward order. Decrypt visits them in reverse.
const (
	LayerCipher Layer = iota + 1
	LayerKeyWrap
	LayerWatermark
	LayerSign
	LayerCover
)

// Layers lists every layer in forward order.
var Layers = []Layer{LayerCipher, LayerKeyWrap, LayerWatermark, LayerSign, LayerCover}

func (l Layer) String() string {
	switch l {
	case LayerCipher:
		return "cipher"
	case LayerKeyWrap:
		return "keywrap"
	case LayerWatermark:
		return "watermark"
	case LayerSign:
		return "sign"
	case LayerCover:
		return "cover"
	}
	return "unknown"
}

// LayerRecord describes the output of one forward layer. It carries no raw data.
type LayerRecord struct {
	Layer     string `json:"layer"`
	Algorithm string `json:"algorithm"`
	Size      int    `json:"size"`
}
