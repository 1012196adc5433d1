package importer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"recipe-importer/internal/pkg/common"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Page 從 HTML 取出的資料
type Page struct {
	// Recipes JSON-LD 中的 Recipe 物件
	Recipes     []*common.Recipe
	Title       string
	Description string
	Keywords    []string
	// Text 可見文字，保留區塊換行
	Text string
}

// ParsePage 解析 HTML，取出 JSON-LD 食譜、OG meta 與可見文字
func ParsePage(src string) (*Page, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	page := &Page{}
	var scripts []string
	var title string

	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script:
				if strings.EqualFold(attr(n, "type"), "application/ld+json") && n.FirstChild != nil {
					scripts = append(scripts, n.FirstChild.Data)
				}
				return
			case atom.Meta:
				readMeta(n, page)
			case atom.Title:
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(doc)

	if page.Title == "" {
		page.Title = title
	}
	for _, script := range scripts {
		page.Recipes = append(page.Recipes, recipesFromJSONLD(script)...)
	}
	page.Text = visibleText(doc)
	return page, nil
}

// ExtractRecipesFromHTML 只回傳 JSON-LD 食譜候選
func ExtractRecipesFromHTML(src string) ([]*common.Recipe, error) {
	page, err := ParsePage(src)
	if err != nil {
		return nil, err
	}
	return page.Recipes, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func readMeta(n *html.Node, page *Page) {
	property := strings.ToLower(attr(n, "property"))
	name := strings.ToLower(attr(n, "name"))
	content := strings.TrimSpace(attr(n, "content"))
	if content == "" {
		return
	}
	switch {
	case property == "og:title" || name == "twitter:title":
		if page.Title == "" {
			page.Title = content
		}
	case property == "og:description" || name == "description" || name == "twitter:description":
		if page.Description == "" {
			page.Description = content
		}
	case name == "keywords":
		if len(page.Keywords) == 0 {
			page.Keywords = common.DedupeStrings(strings.Split(content, ","))
		}
	}
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
	atom.Ul: true, atom.Ol: true, atom.Table: true, atom.Blockquote: true, atom.Pre: true,
}

var skippedElements = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Template: true,
	atom.Svg: true, atom.Iframe: true, atom.Nav: true, atom.Form: true, atom.Button: true, atom.Head: true,
}

// textWriter 記錄最後寫入的字元，避免重複的空白與換行
type textWriter struct {
	sb   strings.Builder
	last byte
}

func (w *textWriter) write(s string) {
	if s == "" {
		return
	}
	w.sb.WriteString(s)
	w.last = s[len(s)-1]
}

func (w *textWriter) newline() {
	if w.last != 0 && w.last != '\n' {
		w.write("\n")
	}
}

// visibleText 走訪 DOM 取出可見文字，區塊元素換行，清單項目加上前綴
func visibleText(doc *html.Node) string {
	w := &textWriter{}

	var f func(n *html.Node, listIndex *int)
	f = func(n *html.Node, listIndex *int) {
		switch n.Type {
		case html.TextNode:
			text := strings.Join(strings.Fields(n.Data), " ")
			if text == "" {
				return
			}
			if w.last != 0 && w.last != '\n' && w.last != ' ' {
				w.write(" ")
			}
			w.write(text)
			return
		case html.ElementNode:
			if skippedElements[n.DataAtom] {
				return
			}
		}

		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			w.newline()
		}

		childIndex := listIndex
		switch n.DataAtom {
		case atom.Ol:
			i := 0
			childIndex = &i
		case atom.Ul:
			childIndex = nil
		case atom.Li:
			if listIndex != nil {
				*listIndex++
				w.write(strconv.Itoa(*listIndex) + ". ")
			} else {
				w.write("- ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c, childIndex)
		}
		if block {
			w.newline()
		}
	}
	f(doc, nil)
	return strings.TrimSpace(w.sb.String())
}

// recipesFromJSONLD 從一段 JSON-LD 中找出所有 Recipe（頂層、陣列、@graph）
func recipesFromJSONLD(script string) []*common.Recipe {
	var root interface{}
	if err := common.ParseJSON(strings.TrimSpace(script), &root); err != nil {
		return nil
	}
	var out []*common.Recipe
	var walk func(v interface{})
	walk = func(v interface{}) {
		switch node := v.(type) {
		case []interface{}:
			for _, item := range node {
				walk(item)
			}
		case map[string]interface{}:
			if isRecipeType(node["@type"]) {
				out = append(out, recipeFromLD(node))
				return
			}
			if graph, ok := node["@graph"]; ok {
				walk(graph)
			}
			if main, ok := node["mainEntity"]; ok {
				walk(main)
			}
		}
	}
	walk(root)
	return out
}

func isRecipeType(v interface{}) bool {
	switch t := v.(type) {
	case string:
		return strings.EqualFold(t, "Recipe") || strings.HasSuffix(t, "/Recipe")
	case []interface{}:
		for _, item := range t {
			if isRecipeType(item) {
				return true
			}
		}
	}
	return false
}

func recipeFromLD(m map[string]interface{}) *common.Recipe {
	r := common.NewRecipe()
	r.Name = html.UnescapeString(ldString(m["name"]))
	r.Description = html.UnescapeString(ldString(m["description"]))

	ingredients := ldStrings(m["recipeIngredient"])
	if len(ingredients) == 0 {
		ingredients = ldStrings(m["ingredients"])
	}
	for _, line := range ingredients {
		line = Normalize(html.UnescapeString(line))
		if line == "" {
			continue
		}
		if ing, ok := parseIngredientBody(line); ok {
			r.Ingredients = append(r.Ingredients, ing)
		}
	}

	r.Steps = ldInstructions(m["recipeInstructions"])
	r.PrepTime = FormatISODuration(ldString(m["prepTime"]))
	r.CookTime = FormatISODuration(ldString(m["cookTime"]))
	r.Servings = ldYield(m["recipeYield"])

	var tags []string
	for _, key := range []string{"keywords", "recipeCategory", "recipeCuisine"} {
		for _, v := range ldStrings(m[key]) {
			tags = append(tags, strings.Split(v, ",")...)
		}
	}
	r.Tags = common.DedupeStrings(tags)
	return r
}

// ldString 取出純文字：字串、數字、陣列第一個、或物件的 text/name/@value
func ldString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case []interface{}:
		for _, item := range t {
			if s := ldString(item); s != "" {
				return s
			}
		}
	case map[string]interface{}:
		for _, key := range []string{"text", "name", "@value"} {
			if s := ldString(t[key]); s != "" {
				return s
			}
		}
	}
	return ""
}

func ldStrings(v interface{}) []string {
	switch t := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := ldString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case nil:
		return nil
	default:
		if s := ldString(t); s != "" {
			return []string{s}
		}
	}
	return nil
}

// ldInstructions 支援字串、字串陣列、HowToStep 與 HowToSection
func ldInstructions(v interface{}) []string {
	steps := []string{}
	var walk func(v interface{})
	walk = func(v interface{}) {
		switch t := v.(type) {
		case string:
			for _, line := range nonEmptyLines(html.UnescapeString(t)) {
				if s := stripStepPrefix(stripTags(line)); s != "" {
					steps = append(steps, s)
				}
			}
		case []interface{}:
			for _, item := range t {
				walk(item)
			}
		case map[string]interface{}:
			if items, ok := t["itemListElement"]; ok {
				walk(items)
				return
			}
			text := ldString(t["text"])
			if text == "" {
				text = ldString(t["name"])
			}
			walk(text)
		}
	}
	walk(v)
	return steps
}

func ldYield(v interface{}) string {
	switch t := v.(type) {
	case []interface{}:
		// 常見格式 ["4", "4 servings"]，取第一個
		for _, item := range t {
			if s := ldYield(item); s != "" {
				return s
			}
		}
		return ""
	default:
		return ldString(t)
	}
}

var tagStripper = regexp.MustCompile(`<[^>]+>`)

func stripTags(s string) string {
	return strings.Join(strings.Fields(tagStripper.ReplaceAllString(s, " ")), " ")
}

var isoDuration = regexp.MustCompile(`(?i)^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// FormatISODuration 將 PT1H15M 轉為 "1 hr 15 min"；無法解析時原樣回傳
func FormatISODuration(s string) string {
	s = strings.TrimSpace(s)
	m := isoDuration.FindStringSubmatch(s)
	if s == "" || m == nil {
		return s
	}
	var parts []string
	add := func(v, unit string) {
		if v == "" {
			return
		}
		if n, err := strconv.ParseFloat(v, 64); err != nil || n == 0 {
			return
		}
		parts = append(parts, v+" "+unit)
	}
	add(m[1], "day")
	add(m[2], "hr")
	add(m[3], "min")
	if len(parts) == 0 {
		add(m[4], "sec")
	}
	return strings.Join(parts, " ")
}
