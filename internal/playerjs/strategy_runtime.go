package playerjs

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// runtimeStrategy executes the whole player script inside a goja VM and
// calls the player's own transform entry points. Slower to build than the
// op list extractor but survives transform obfuscation changes.
type runtimeStrategy struct {
	mu       sync.Mutex
	vm       *goja.Runtime
	sigFunc  goja.Callable
	nURLFunc goja.Callable
}

var (
	sigEntryPointRegexp  = regexp.MustCompile(`const\s+[A-Za-z0-9_$]+=([A-Za-z0-9_$]+)\(16,decodeURIComponent\([^\)]*\.s\)\)`)
	nURLEntryPointRegexp = regexp.MustCompile(`([A-Za-z0-9_$]+)=function\(b\)\{try\{const\s+[A-Za-z0-9_$]+=\(new\s+g\.Mj\(b,!0\)\)\.get\("n"\)`)
	nPathSegmentRegexp   = regexp.MustCompile(`/n/([^/?]+)`)
)

func newRuntimeStrategy(jsBody []byte) (Strategy, error) {
	body := string(jsBody)
	sigName := ""
	nURLName := ""
	if m := sigEntryPointRegexp.FindStringSubmatch(body); len(m) > 1 {
		sigName = m[1]
	}
	if m := nURLEntryPointRegexp.FindStringSubmatch(body); len(m) > 1 {
		nURLName = m[1]
	}
	if sigName == "" && nURLName == "" {
		return nil, errors.New("runtime: transform entry points not found")
	}

	inject := ""
	if sigName != "" {
		inject += "g.__grab_sig=" + sigName + ";"
	}
	if nURLName != "" {
		inject += "g.__grab_nurl=" + nURLName + ";"
	}

	// Export the inner functions through the player's own module object
	// before its IIFE closes over them.
	const marker = "})(_yt_player);"
	markerPos := strings.LastIndex(body, marker)
	if markerPos < 0 {
		return nil, errors.New("runtime: unable to inject transform exports")
	}
	body = body[:markerPos] + inject + body[markerPos:]

	vm := goja.New()
	if _, err := vm.RunString(browserShimJS); err != nil {
		return nil, err
	}
	if _, err := vm.RunString(body); err != nil {
		return nil, err
	}

	root := vm.Get("_yt_player")
	if root == nil || goja.IsUndefined(root) || goja.IsNull(root) {
		return nil, errors.New("runtime: missing _yt_player root")
	}
	rootObj := root.ToObject(vm)

	st := &runtimeStrategy{vm: vm}
	if v := rootObj.Get("__grab_sig"); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
		if fn, ok := goja.AssertFunction(v); ok {
			st.sigFunc = fn
		}
	}
	if v := rootObj.Get("__grab_nurl"); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
		if fn, ok := goja.AssertFunction(v); ok {
			st.nURLFunc = fn
		}
	}
	if st.sigFunc == nil && st.nURLFunc == nil {
		return nil, errors.New("runtime: transform exports are not callable")
	}
	return st, nil
}

func (st *runtimeStrategy) Name() string { return "runtime" }

func (st *runtimeStrategy) DecodeSignature(s string) (string, error) {
	if st.sigFunc == nil {
		return "", errors.New("runtime: signature entry point unavailable")
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	out, err := st.sigFunc(goja.Undefined(), st.vm.ToValue(16), st.vm.ToValue(s))
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

func (st *runtimeStrategy) DecodeThrottle(n string) (string, error) {
	if st.nURLFunc == nil {
		return "", errors.New("runtime: n entry point unavailable")
	}

	// The player's n transform operates on a whole videoplayback URL, so
	// wrap the value into one and pull the rewritten segment back out.
	escaped := url.PathEscape(n)
	inputURL := "https://www.youtube.com/videoplayback/n/" + escaped + "/x?n=" + url.QueryEscape(n)

	st.mu.Lock()
	out, err := st.nURLFunc(goja.Undefined(), st.vm.ToValue(inputURL))
	st.mu.Unlock()
	if err != nil {
		return "", err
	}

	m := nPathSegmentRegexp.FindStringSubmatch(out.String())
	if len(m) < 2 {
		return "", errors.New("runtime: rewritten URL missing /n/ segment")
	}
	decoded, decodeErr := url.PathUnescape(m[1])
	if decodeErr != nil {
		return "", decodeErr
	}
	return decoded, nil
}

// browserShimJS stubs the browser surface the player script touches at load
// time. Everything returns inert values; nothing here affects transforms.
const browserShimJS = `
var globalThis = this;
if (typeof window === 'undefined') { var window = this; }
if (typeof document === 'undefined') { var document = {}; }
if (typeof navigator === 'undefined') { var navigator = {}; }
if (typeof self === 'undefined') { var self = this; }
if (typeof location === 'undefined') {
	var location = {
		href: 'https://www.youtube.com/watch',
		protocol: 'https:',
		host: 'www.youtube.com',
		hostname: 'www.youtube.com',
		pathname: '/watch',
		search: '',
		hash: '',
		origin: 'https://www.youtube.com'
	};
}
if (!window.location) { window.location = location; }
if (!window.navigator) { window.navigator = navigator; }
if (!window.document) { window.document = document; }
if (!window.top) { window.top = window; }
if (!window.parent) { window.parent = window; }
if (!window.performance) {
	window.performance = { now: function(){ return 0; }, mark: function(){}, measure: function(){}, clearMarks: function(){} };
}
if (!window.localStorage) {
	window.localStorage = { getItem: function(){ return null; }, setItem: function(){}, removeItem: function(){} };
}
if (!window.sessionStorage) {
	window.sessionStorage = { getItem: function(){ return null; }, setItem: function(){}, removeItem: function(){} };
}
if (!window.setTimeout) { window.setTimeout = function(fn){ return 0; }; }
if (!window.clearTimeout) { window.clearTimeout = function(){}; }
if (!window.setInterval) { window.setInterval = function(fn){ return 0; }; }
if (!window.clearInterval) { window.clearInterval = function(){}; }
if (!window.addEventListener) { window.addEventListener = function(){}; }
if (!window.removeEventListener) { window.removeEventListener = function(){}; }
if (!window.matchMedia) {
	window.matchMedia = function(){ return { matches: false, addListener: function(){}, removeListener: function(){} }; };
}
if (!window.crypto) {
	window.crypto = {
		getRandomValues: function(arr){ for (var i = 0; i < arr.length; i++) { arr[i] = 0; } return arr; }
	};
}
if (typeof XMLHttpRequest === 'undefined') {
	var XMLHttpRequest = function(){};
	XMLHttpRequest.prototype = {
		open: function(){},
		send: function(){},
		setRequestHeader: function(){},
		addEventListener: function(){},
		removeEventListener: function(){},
		getResponseHeader: function(){ return ''; },
		abort: function(){},
		readyState: 4,
		status: 200,
		responseText: '',
		response: null
	};
}
if (!window.XMLHttpRequest) { window.XMLHttpRequest = XMLHttpRequest; }
if (typeof Intl === 'undefined') { var Intl = {}; }
if (!Intl.DateTimeFormat) {
	Intl.DateTimeFormat = function(){ return { resolvedOptions: function(){ return { timeZone: 'UTC' }; } }; };
}
if (!Intl.NumberFormat) {
	Intl.NumberFormat = function(){ return { format: function(v){ return String(v); } }; };
	Intl.NumberFormat.supportedLocalesOf = function(){ return []; };
}
if (!Intl.PluralRules) {
	Intl.PluralRules = function(){ return { select: function(){ return 'other'; } }; };
	Intl.PluralRules.supportedLocalesOf = function(){ return []; };
}
if (!Intl.RelativeTimeFormat) {
	Intl.RelativeTimeFormat = function(){ return { format: function(v, u){ return String(v) + ' ' + String(u); } }; };
	Intl.RelativeTimeFormat.supportedLocalesOf = function(){ return []; };
}
if (!document.createElement) {
	document.createElement = function(){
		return {
			style: {},
			getContext: function(){ return null; },
			canPlayType: function(){ return ''; },
			setAttribute: function(){},
			removeAttribute: function(){},
			appendChild: function(){},
			addEventListener: function(){},
			removeEventListener: function(){}
		};
	};
}
if (!document.querySelectorAll) { document.querySelectorAll = function(){ return []; }; }
if (!document.getElementsByTagName) { document.getElementsByTagName = function(){ return []; }; }
if (!document.addEventListener) { document.addEventListener = function(){}; }
if (!document.removeEventListener) { document.removeEventListener = function(){}; }
if (!document.location) { document.location = window.location; }
if (!document.documentElement) { document.documentElement = { style: {} }; }
`
