package importer

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ReaderDocument reader proxy 回應拆出的標題與內容
type ReaderDocument struct {
	Title   string
	Source  string
	Content string
}

// SplitReaderResponse 拆開 "Title: / URL Source: / Markdown Content:" 前言
func SplitReaderResponse(body string) ReaderDocument {
	doc := ReaderDocument{Content: body}
	head, content, found := strings.Cut(body, "Markdown Content:")
	if !found {
		return doc
	}
	doc.Content = strings.TrimSpace(content)
	for _, line := range strings.Split(head, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Title:"):
			doc.Title = strings.TrimSpace(strings.TrimPrefix(line, "Title:"))
		case strings.HasPrefix(line, "URL Source:"):
			doc.Source = strings.TrimSpace(strings.TrimPrefix(line, "URL Source:"))
		}
	}
	return doc
}

// FlattenMarkdown 將 markdown 轉為逐行純文字：
// 有序清單保留編號，無序清單改成 "- "，連結與強調只留文字。
func FlattenMarkdown(md string) string {
	src := []byte(md)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var lines []string
	emit := func(prefix, body string) {
		for i, line := range strings.Split(body, "\n") {
			line = strings.Join(strings.Fields(line), " ")
			if line == "" {
				continue
			}
			if i == 0 {
				line = prefix + line
			}
			lines = append(lines, line)
		}
	}

	// 清單項目的前綴由第一個文字區塊使用
	pending := ""
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.ListItem:
			pending = listPrefix(node)
		case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
			emit(pending, inlineText(node, src))
			pending = ""
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			var sb strings.Builder
			segs := node.Lines()
			for i := 0; i < segs.Len(); i++ {
				seg := segs.At(i)
				sb.Write(seg.Value(src))
			}
			emit(pending, sb.String())
			pending = ""
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.ThematicBreak:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(lines, "\n")
}

func listPrefix(item *ast.ListItem) string {
	list, ok := item.Parent().(*ast.List)
	if !ok || !list.IsOrdered() {
		return "- "
	}
	index := 0
	for c := list.FirstChild(); c != nil && c != ast.Node(item); c = c.NextSibling() {
		index++
	}
	return strconv.Itoa(list.Start+index) + ". "
}

// inlineText 取出 inline 節點的文字，軟換行保留成換行
func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.String:
			sb.Write(t.Value)
		case *ast.AutoLink, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}
