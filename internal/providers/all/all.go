// Package all registers every provider client. Importing it for side
// effects makes the full closed set available through the registry:
//
//	import _ "github.com/modelscout/modelscout/internal/providers/all"
package all

import (
	_ "github.com/modelscout/modelscout/internal/providers/anthropic"
	_ "github.com/modelscout/modelscout/internal/providers/artificialanalysis"
	_ "github.com/modelscout/modelscout/internal/providers/google"
	_ "github.com/modelscout/modelscout/internal/providers/huggingface"
	_ "github.com/modelscout/modelscout/internal/providers/openai"
)
