package render

import (
	"bufio"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// BlockKind classifies a parsed Markdown block.
type BlockKind string

const (
	BlockHeading   BlockKind = "heading"
	BlockParagraph BlockKind = "paragraph"
	BlockList      BlockKind = "list"
	BlockOrdered   BlockKind = "ordered"
)

// Block is one structural element of a drafted document.
type Block struct {
	Kind  BlockKind
	Level int // heading level, 1-6
	Text  string
	Items []string
}

//nolint:gochecknoglobals // compiled once
var (
	frontmatterDelimiter = regexp.MustCompile(`^---\s*$`)
	headingPattern       = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`)
	listItemPattern      = regexp.MustCompile(`^\s*[-*+]\s+(.+)$`)
	orderedItemPattern   = regexp.MustCompile(`^\s*\d+[.)]\s+(.+)$`)
	emphasisPattern      = regexp.MustCompile(`(\*\*|__)(.+?)(\*\*|__)`)
)

// ErrNoFrontmatter is returned by SplitFrontmatter when the document has no leading --- block.
var ErrNoFrontmatter = errors.New("missing frontmatter")

// SplitFrontmatter separates a leading YAML block delimited by --- lines from the body.
func SplitFrontmatter(markdown string) (string, string, error) {
	lines := strings.Split(markdown, "\n")
	if len(lines) < 2 || !frontmatterDelimiter.MatchString(strings.TrimSpace(lines[0])) {
		return "", markdown, ErrNoFrontmatter
	}
	for i := 1; i < len(lines); i++ {
		if frontmatterDelimiter.MatchString(strings.TrimSpace(lines[i])) {
			return strings.Join(lines[1:i], "\n"), strings.Join(lines[i+1:], "\n"), nil
		}
	}
	return "", markdown, fmt.Errorf("%w: closing delimiter (---) not found", ErrNoFrontmatter)
}

// ParseFrontmatter decodes the YAML frontmatter of a rendered Markdown document.
func ParseFrontmatter(markdown string) (*Frontmatter, string, error) {
	raw, body, err := SplitFrontmatter(markdown)
	if err != nil {
		return nil, body, err
	}
	var fm Frontmatter
	if err := yaml.Unmarshal([]byte(raw), &fm); err != nil {
		return nil, body, fmt.Errorf("failed to parse YAML frontmatter: %w", err)
	}
	return &fm, body, nil
}

// ParseBlocks splits a Markdown body into headings, paragraphs and lists. Consecutive text
// lines join into one paragraph; a blank line ends it.
func ParseBlocks(markdown string) []Block {
	var (
		blocks []Block
		para   []string
		list   *Block
	)
	flushPara := func() {
		if len(para) > 0 {
			blocks = append(blocks, Block{Kind: BlockParagraph, Text: strings.Join(para, " ")})
			para = nil
		}
	}
	flushList := func() {
		if list != nil {
			blocks = append(blocks, *list)
			list = nil
		}
	}
	addItem := func(kind BlockKind, item string) {
		flushPara()
		if list != nil && list.Kind != kind {
			flushList()
		}
		if list == nil {
			list = &Block{Kind: kind}
		}
		list.Items = append(list.Items, item)
	}

	scanner := bufio.NewScanner(strings.NewReader(markdown))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			flushPara()
			flushList()
		case headingPattern.MatchString(trimmed):
			m := headingPattern.FindStringSubmatch(trimmed)
			flushPara()
			flushList()
			blocks = append(blocks, Block{Kind: BlockHeading, Level: len(m[1]), Text: stripEmphasis(m[2])})
		case listItemPattern.MatchString(line):
			addItem(BlockList, stripEmphasis(listItemPattern.FindStringSubmatch(line)[1]))
		case orderedItemPattern.MatchString(line):
			addItem(BlockOrdered, stripEmphasis(orderedItemPattern.FindStringSubmatch(line)[1]))
		default:
			flushList()
			para = append(para, stripEmphasis(trimmed))
		}
	}
	flushPara()
	flushList()
	return blocks
}

// Headings returns the text of every heading in markdown, in order.
func Headings(markdown string) []string {
	var out []string
	for _, b := range ParseBlocks(markdown) {
		if b.Kind == BlockHeading {
			out = append(out, b.Text)
		}
	}
	return out
}

func stripEmphasis(s string) string {
	return emphasisPattern.ReplaceAllString(s, "$2")
}
