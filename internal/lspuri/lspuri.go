// Package lspuri converts between file-system paths and the file://
// URIs the LSP wire protocol uses to identify documents.
//
// Grounded on original_source/uri-util.cc's makeFileURI/getFileURIPath,
// layered on top of go.lsp.dev/uri for the base file:// <-> path
// primitives (per SPEC_FULL.md §3's domain-stack table) with the
// editor's extra rejection rules (percent-encoding, user-info,
// queries) and the CYGWIN handling the library itself does not
// enforce. go.lsp.dev/uri.File/.Filename already apply the
// RFC-8089-leading-slash convention for Windows drive paths
// (spec.md §6); this package's own Windows-drive helpers exist only
// for the Cygwin rewrite, which operates on that same
// leading-slash-free native form.
package lspuri

import (
	"fmt"
	"path"
	"strings"

	lspuriglobal "go.lsp.dev/uri"
)

// PathSemantics selects how a native path is mapped onto a URI path,
// mirroring original_source/uri-util.h's URIPathSemantics enum.
type PathSemantics int

const (
	// Normal leaves the path unmodified beyond the file:// wrapping.
	Normal PathSemantics = iota

	// Cygwin additionally rewrites between Windows-native paths and
	// the Cygwin path convention, for use with LSP servers (e.g.
	// pylsp under Cygwin) that expect Cygwin-style paths. Selected by
	// SM_EDITOR_PYLSP_IS_CYGWIN (spec.md §6).
	Cygwin
)

// ToURI converts an absolute, forward-slash-separated file name into a
// file:// URI. fname must already be absolute; callers are expected to
// have normalized it first (matching original_source/lsp-client.h's
// normalizeLSPPath contract, implemented by internal/lspclient). A
// Windows drive path such as "C:/Users/dev" is absolute on its own
// terms (the drive letter stands in for the leading slash) and is
// accepted without one, matching the native-path form FromURI produces
// for the same input (see isWindowsDrivePath's doc comment).
func ToURI(fname string, semantics PathSemantics) (string, error) {
	if !IsValidLSPPath(fname) {
		return "", fmt.Errorf("lspuri: %q is not an absolute forward-slash path", fname)
	}

	native := fname
	if semantics == Cygwin {
		native = cygwinToWindows(fname)
	}

	u := lspuriglobal.File(native)
	return string(u), nil
}

// FromURI converts a file:// URI back into an absolute file name,
// rejecting percent-encoding, user-info and query components that the
// original editor (and this client) does not handle.
func FromURI(rawURI string, semantics PathSemantics) (string, error) {
	if strings.Contains(rawURI, "%") {
		return "", fmt.Errorf("lspuri: URI uses percent-encoding, which is not supported: %s", rawURI)
	}
	if strings.Contains(rawURI, "?") {
		return "", fmt.Errorf("lspuri: URI has a query component, which is not supported: %s", rawURI)
	}
	if !strings.HasPrefix(rawURI, "file://") {
		return "", fmt.Errorf("lspuri: URI does not use the file:// scheme: %s", rawURI)
	}
	// go.lsp.dev/uri.Filename rejects a user-info component itself
	// (file://user@host/path is not a supported shape), but check
	// explicitly so the error message matches the original's.
	afterScheme := rawURI[len("file://"):]
	if authority, _, ok := strings.Cut(afterScheme, "/"); ok && strings.Contains(authority, "@") {
		return "", fmt.Errorf("lspuri: URI has a user-info component, which is not supported: %s", rawURI)
	}

	native := lspuriglobal.URI(rawURI).Filename()
	if native == "" {
		return "", fmt.Errorf("lspuri: could not extract a path from URI: %s", rawURI)
	}
	native = filepathToForwardSlash(native)

	// go.lsp.dev/uri.Filename already drops the RFC 8089 leading slash
	// from a Windows drive path (spec.md §6: "/C:/foo/bar has its
	// leading / dropped on conversion to a native path"), so native is
	// either a "/..."-prefixed absolute path or an unprefixed
	// drive-letter one; nothing further to strip here.
	if !strings.HasPrefix(native, "/") && !isWindowsDrivePath(native) {
		return "", fmt.Errorf("lspuri: path is neither absolute nor a Windows drive path: %s", native)
	}

	result := native
	if semantics == Cygwin {
		result = windowsToCygwin(native)
	}
	return result, nil
}

// IsValidLSPPath reports whether fname is absolute and uses only
// forward slashes, the invariant original_source/lsp-client.h requires
// of every LSPDocumentInfo::m_fname. A Windows drive path ("C:/foo")
// counts as absolute even without a leading slash, per spec.md §6.
func IsValidLSPPath(fname string) bool {
	if strings.Contains(fname, "\\") {
		return false
	}
	if strings.HasPrefix(fname, "/") {
		return true
	}
	return isWindowsDrivePath(fname)
}

// Normalize returns an absolute, forward-slash, lexically-cleaned
// version of fname (matching original_source/lsp-client.h's
// normalizeLSPPath, minus the "make absolute relative to cwd" step,
// which is the caller's responsibility since this package has no
// notion of a current directory).
func Normalize(fname string) string {
	cleaned := path.Clean(filepathToForwardSlash(fname))
	return cleaned
}

func filepathToForwardSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// isWindowsDrivePath reports whether p is a Windows path in its native,
// leading-slash-free form ("C:/foo/bar"), matching
// original_source/uri-util.cc's convention that a drive letter already
// makes a path absolute without an RFC 8089 leading slash.
func isWindowsDrivePath(p string) bool {
	return len(p) >= 3 && isDriveLetter(p[0]) && p[1] == ':' && p[2] == '/'
}

func isDriveLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// cygwinToWindows rewrites a Cygwin-style absolute path
// ("/cygdrive/c/foo") into the Windows-drive URI path form ("/C:/foo")
// ToURI then wraps in file://. Any other path, including the short
// "/c/foo" form, is returned unchanged.
func cygwinToWindows(p string) string {
	const prefix = "/cygdrive/"
	if strings.HasPrefix(p, prefix) && len(p) > len(prefix) {
		rest := p[len(prefix):]
		drive, tail, ok := strings.Cut(rest, "/")
		if ok && len(drive) == 1 && isDriveLetter(drive[0]) {
			return "/" + strings.ToUpper(drive) + ":/" + tail
		}
	}
	return p
}

// windowsToCygwin is the inverse of cygwinToWindows, applied to the
// native, leading-slash-free Windows path FromURI extracts from a URI
// (e.g. "C:/foo", already stripped of its RFC 8089 leading slash by
// go.lsp.dev/uri.Filename).
func windowsToCygwin(p string) string {
	if isWindowsDrivePath(p) {
		return "/cygdrive/" + strings.ToLower(p[:1]) + p[2:]
	}
	return p
}
