// Package server implements the basalt language server.
package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/neverUsedGithub/basalt/build"
	"github.com/neverUsedGithub/basalt/catalogue"
	"github.com/neverUsedGithub/basalt/compiler"
	"github.com/neverUsedGithub/basalt/df"
	"github.com/neverUsedGithub/basalt/typecheck"
	"github.com/neverUsedGithub/basalt/types"
)

const lspName = "basalt-lsp"

var log = commonlog.GetLogger("basalt.server")

// document is an open file and what the checker last learned about it.
type document struct {
	text  string
	src   *compiler.Source
	diags compiler.Diagnostics
	// result is the latest check that produced one. Edits that leave the
	// file unparseable keep the previous result for completion.
	result *typecheck.Result
}

// LspServer answers editor requests by type checking open documents.
type LspServer struct {
	cat *catalogue.Catalogue

	mu   sync.Mutex
	docs map[protocol.DocumentUri]*document

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a language server checking against cat. A nil catalogue
// means the built-in one.
func NewLSP(cat *catalogue.Catalogue) *LspServer {
	if cat == nil {
		cat = catalogue.Builtin()
	}
	s := &LspServer{
		cat:     cat,
		docs:    make(map[protocol.DocumentUri]*document),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run serves on stdio until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{":", "@"},
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	doc := s.update(params.TextDocument.URI, params.TextDocument.Text)
	s.publishDiagnostics(ctx, params.TextDocument.URI, doc)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	// with full sync the last change holds the whole text
	if len(params.ContentChanges) == 0 {
		return nil
	}
	last := params.ContentChanges[len(params.ContentChanges)-1]
	whole, ok := last.(protocol.TextDocumentContentChangeEventWhole)
	if !ok {
		return nil
	}
	doc := s.update(params.TextDocument.URI, whole.Text)
	s.publishDiagnostics(ctx, params.TextDocument.URI, doc)
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, uri)
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// update checks text and stores it as the document at uri.
func (s *LspServer) update(uri protocol.DocumentUri, text string) *document {
	src := compiler.NewSource(string(uri), text)
	res, diags := build.Check(src, s.cat)
	log.Debugf("checked %s: %d diagnostics", uri, len(diags))

	doc := &document{text: text, src: src, diags: diags, result: res}

	s.mu.Lock()
	defer s.mu.Unlock()
	if res == nil {
		if prev, ok := s.docs[uri]; ok {
			doc.result = prev.result
		}
	}
	s.docs[uri] = doc
	return doc
}

func (s *LspServer) document(uri protocol.DocumentUri) *document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[uri]
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	return s.complete(doc, params.Position), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	return s.hover(doc, params.Position), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	loc := s.definition(doc, params.TextDocument.URI, params.Position)
	if loc == nil {
		return nil, nil
	}
	return loc, nil
}

// complete offers namespace members after "name::" and the visible
// variables and globals everywhere else.
func (s *LspServer) complete(doc *document, pos protocol.Position) []protocol.CompletionItem {
	var items []protocol.CompletionItem

	if ns, prefix, ok := extractMember(doc.text, pos); ok {
		namespace := s.namespace(doc, ns)
		if namespace == nil {
			return nil
		}
		for _, name := range sortedMembers(namespace) {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			items = append(items, completionItem(name, namespace.Members[name]))
		}
		return items
	}

	if doc.result == nil {
		return nil
	}
	prefix := extractPrefix(doc.text, pos)
	class, scoped := scopeBefore(doc.text, pos, prefix)
	scope := doc.result.ScopeAt(offsetPosition(doc.text, pos))
	for _, sym := range scope.Visible() {
		if !strings.HasPrefix(sym.Name, prefix) {
			continue
		}
		switch {
		case scoped && sym.Class == class:
			items = append(items, completionItem(sym.Name, sym.Type))
		case scoped:
		case sym.Class == df.Shared:
			items = append(items, completionItem(sym.Name, sym.Type))
		default:
			items = append(items, completionItem(sym.Class.Keyword()+" "+sym.Name, sym.Type))
		}
	}

	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

// namespace resolves name against the document's globals, falling back to
// the catalogue when the document has never checked.
func (s *LspServer) namespace(doc *document, name string) *types.Namespace {
	if doc.result != nil {
		if sym, ok := doc.result.Root.Lookup(df.Shared, name); ok {
			if ns, ok := sym.Type.(*types.Namespace); ok {
				return ns
			}
		}
	}
	ns, _ := s.cat.Namespace(name)
	return ns
}

func sortedMembers(ns *types.Namespace) []string {
	names := make([]string, 0, len(ns.Members))
	for name := range ns.Members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func completionItem(label string, t types.Type) protocol.CompletionItem {
	kind := protocol.CompletionItemKindVariable
	switch t.(type) {
	case *types.Action, *types.Callable:
		kind = protocol.CompletionItemKindFunction
	case *types.Event:
		kind = protocol.CompletionItemKindEvent
	case *types.Namespace:
		kind = protocol.CompletionItemKindModule
	case *types.GameValue:
		kind = protocol.CompletionItemKindConstant
	}
	detail := t.String()
	insert := label
	return protocol.CompletionItem{
		Label:      label,
		Kind:       &kind,
		Detail:     &detail,
		InsertText: &insert,
	}
}

// hover shows the type of the innermost expression under the cursor.
func (s *LspServer) hover(doc *document, pos protocol.Position) *protocol.Hover {
	if doc.result == nil {
		return nil
	}
	n, t := doc.result.NodeAt(offsetPosition(doc.text, pos))
	if n == nil || t == nil {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "```basalt\n%s\n```", t)
	if d := docOf(t); d != "" {
		b.WriteString("\n\n---\n\n")
		b.WriteString(d)
	}

	rng := spanRange(n.Span())
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
		Range: &rng,
	}
}

func docOf(t types.Type) string {
	switch t := t.(type) {
	case *types.Action:
		return t.Doc
	case *types.Event:
		return t.Doc
	case *types.GameValue:
		return t.Doc
	}
	return ""
}

// definition jumps from a variable or global to where it was defined.
func (s *LspServer) definition(doc *document, uri protocol.DocumentUri, pos protocol.Position) *protocol.Location {
	if doc.result == nil {
		return nil
	}
	at := offsetPosition(doc.text, pos)
	n, _ := doc.result.NodeAt(at)
	scope := doc.result.ScopeAt(at)

	var sym *typecheck.Symbol
	switch n := n.(type) {
	case *compiler.Variable:
		class, ok := df.ParseScope(n.Scope)
		if !ok {
			return nil
		}
		sym, _ = scope.Lookup(class, n.Name)
	case *compiler.Identifier:
		sym, _ = scope.Lookup(df.Shared, n.Name)
	}
	// catalogue namespaces have no source
	if sym == nil || sym.Span.End.Offset == 0 {
		return nil
	}
	return &protocol.Location{URI: uri, Range: spanRange(sym.Span)}
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, doc *document) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: toDiagnostics(doc.diags),
	})
}

func toDiagnostics(diags compiler.Diagnostics) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(diags))
	severity := protocol.DiagnosticSeverityError
	source := lspName
	for _, d := range diags {
		code := protocol.IntegerOrString{Value: string(d.Kind)}
		out = append(out, protocol.Diagnostic{
			Range:    spanRange(d.Span),
			Severity: &severity,
			Code:     &code,
			Source:   &source,
			Message:  d.Message,
		})
	}
	return out
}

// --- Position conversion ---

// spanRange converts a span to a 0-based LSP range.
func spanRange(sp compiler.Span) protocol.Range {
	return protocol.Range{
		Start: lspPosition(sp.Start),
		End:   lspPosition(sp.End),
	}
}

func lspPosition(p compiler.Position) protocol.Position {
	line, col := p.Line-1, p.Column-1
	if line < 0 {
		line = 0
	}
	if col < 0 {
		col = 0
	}
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)}
}

// offsetPosition converts an LSP position within text to a source
// position. Characters are counted in bytes.
func offsetPosition(text string, pos protocol.Position) compiler.Position {
	offset, line := 0, 0
	for line < int(pos.Line) {
		i := strings.IndexByte(text[offset:], '\n')
		if i < 0 {
			offset = len(text)
			break
		}
		offset += i + 1
		line++
	}
	end := strings.IndexByte(text[offset:], '\n')
	if end < 0 {
		end = len(text) - offset
	}
	col := int(pos.Character)
	if col > end {
		col = end
	}
	return compiler.Position{Offset: offset + col, Line: line + 1, Column: col + 1}
}

// --- Text extraction helpers ---

func isIdent(ch byte) bool {
	r := rune(ch)
	return unicode.IsLetter(r) || unicode.IsDigit(r) || ch == '_'
}

// lineBefore returns the text of the cursor's line up to the cursor.
func lineBefore(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}
	return line[:col]
}

// extractPrefix returns the identifier fragment before the cursor.
func extractPrefix(text string, pos protocol.Position) string {
	line := lineBefore(text, pos)
	start := len(line)
	for start > 0 && isIdent(line[start-1]) {
		start--
	}
	return line[start:]
}

// scopeBefore reports the storage class keyword written just before the
// identifier being completed, as in "@line na".
func scopeBefore(text string, pos protocol.Position, prefix string) (df.StorageClass, bool) {
	line := lineBefore(text, pos)
	before := strings.TrimRight(line[:len(line)-len(prefix)], " \t")
	i := strings.LastIndexByte(before, '@')
	if i < 0 {
		return 0, false
	}
	return df.ParseScope(before[i:])
}

// extractMember recognizes "namespace::prefix" before the cursor.
func extractMember(text string, pos protocol.Position) (namespace, prefix string, ok bool) {
	line := lineBefore(text, pos)
	end := len(line)
	start := end
	for start > 0 && isIdent(line[start-1]) {
		start--
	}
	prefix = line[start:end]
	if start < 2 || line[start-2:start] != "::" {
		return "", "", false
	}
	nsEnd := start - 2
	nsStart := nsEnd
	for nsStart > 0 && isIdent(line[nsStart-1]) {
		nsStart--
	}
	if nsStart == nsEnd {
		return "", "", false
	}
	return line[nsStart:nsEnd], prefix, true
}

func boolPtr(b bool) *bool {
	return &b
}
