package embedding

// Info contains metadata about an embedding model's capabilities,
// narrowed from the teacher's EmbeddingInfo (multi-modal flag dropped,
// out of scope here).
type Info struct {
	ModelName     string `json:"model_name"`
	Dimensions    int    `json:"dimensions"`
	MaxTokens     int    `json:"max_tokens"`
	TokenizerName string `json:"tokenizer_name,omitempty"`
}

// DefaultInfo returns default info for an unrecognized model name.
func DefaultInfo(modelName string) Info {
	return Info{
		ModelName:  modelName,
		Dimensions: 1536,
		MaxTokens:  8191,
	}
}

// OpenAISmallEmbedding3Info returns info for text-embedding-3-small.
func OpenAISmallEmbedding3Info() Info {
	return Info{
		ModelName:     "text-embedding-3-small",
		Dimensions:    1536,
		MaxTokens:     8191,
		TokenizerName: "cl100k_base",
	}
}

// OpenAILargeEmbedding3Info returns info for text-embedding-3-large.
func OpenAILargeEmbedding3Info() Info {
	return Info{
		ModelName:     "text-embedding-3-large",
		Dimensions:    3072,
		MaxTokens:     8191,
		TokenizerName: "cl100k_base",
	}
}
