package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// kittyImageID is reused for every frame so a new image replaces the old.
const kittyImageID = 42

// kittyDeleteAll removes every image placement from the terminal.
const kittyDeleteAll = "\033_Ga=d,d=A\033\\"

// Check if terminal supports Kitty graphics protocol
func supportsKittyGraphics() bool {
	term := os.Getenv("TERM")
	termProgram := os.Getenv("TERM_PROGRAM")

	if strings.Contains(term, "kitty") || strings.Contains(term, "konsole") {
		return true
	}
	return termProgram == "ghostty" || termProgram == "WezTerm"
}

// encodeKitty wraps PNG data in Kitty graphics escapes, sized to columns
// terminal cells wide. Payloads are chunked at 4096 bytes.
func encodeKitty(pngData []byte, columns int) string {
	encoded := base64.StdEncoding.EncodeToString(pngData)

	const chunkSize = 4096
	var result strings.Builder

	result.WriteString(fmt.Sprintf("\033_Ga=d,d=I,i=%d\033\\", kittyImageID))

	if len(encoded) <= chunkSize {
		result.WriteString(fmt.Sprintf("\033_Ga=T,f=100,t=d,i=%d,c=%d,C=1;%s\033\\", kittyImageID, columns, encoded))
		return result.String()
	}

	for i := 0; i < len(encoded); i += chunkSize {
		end := min(i+chunkSize, len(encoded))
		chunk := encoded[i:end]

		switch {
		case i == 0:
			result.WriteString(fmt.Sprintf("\033_Ga=T,f=100,t=d,i=%d,c=%d,C=1,m=1;%s\033\\", kittyImageID, columns, chunk))
		case end == len(encoded):
			result.WriteString(fmt.Sprintf("\033_Gm=0;%s\033\\", chunk))
		default:
			result.WriteString(fmt.Sprintf("\033_Gm=1;%s\033\\", chunk))
		}
	}
	return result.String()
}
