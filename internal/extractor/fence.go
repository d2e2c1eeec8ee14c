package extractor

import "strings"

// Block is one fenced code block lifted out of free-form assistant text.
type Block struct {
	Tag  string // the info string after the opening fence, lowercased
	Body string
}

// ParseFences scans text line by line and returns every complete fenced code
// block. An unterminated fence at the end of the text is discarded.
func ParseFences(text string) []Block {
	var blocks []Block
	var body []string
	var tag string
	inFence := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if inFence {
				blocks = append(blocks, Block{
					Tag:  tag,
					Body: strings.Join(body, "\n"),
				})
				inFence = false
				body = nil
				continue
			}
			inFence = true
			tag = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(trimmed, "```")))
			continue
		}
		if inFence {
			body = append(body, line)
		}
	}
	return blocks
}

// SelectBlock picks the candidate for the generated artifact: the first block
// tagged with the target language, or failing that the first non-empty block
// of any tag. Returns false when text held no usable block.
func SelectBlock(blocks []Block, language string) (Block, bool) {
	language = strings.ToLower(language)
	first := -1
	for i, b := range blocks {
		if strings.TrimSpace(b.Body) == "" {
			continue
		}
		if b.Tag == language {
			return trimBody(b), true
		}
		if first < 0 {
			first = i
		}
	}
	if first < 0 {
		return Block{}, false
	}
	return trimBody(blocks[first]), true
}

func trimBody(b Block) Block {
	b.Body = strings.TrimSpace(b.Body)
	return b
}
