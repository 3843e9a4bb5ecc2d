package playerjs

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dop251/goja"
)

// opListStrategy statically extracts the signature transform as an ordered
// list of reverse/splice/swap operations, and the n transform as a single
// standalone function evaluated in an isolated VM.
type opListStrategy struct {
	jsBody []byte
	sigOps []transformOp
	nFunc  string
}

func newOpListStrategy(jsBody []byte) (Strategy, error) {
	st := &opListStrategy{jsBody: jsBody}
	sigOps, sigErr := parseSignatureOps(jsBody)
	nFunc, nErr := extractNFunction(jsBody)
	if sigErr != nil && nErr != nil {
		return nil, fmt.Errorf("op list extraction: %w", errors.Join(sigErr, nErr))
	}
	st.sigOps = sigOps
	st.nFunc = nFunc
	return st, nil
}

func (st *opListStrategy) Name() string { return "oplist" }

func (st *opListStrategy) DecodeSignature(s string) (string, error) {
	if len(st.sigOps) == 0 {
		return "", errors.New("oplist: no signature operations extracted")
	}
	bs := []byte(s)
	for _, op := range st.sigOps {
		bs = op(bs)
	}
	return string(bs), nil
}

func (st *opListStrategy) DecodeThrottle(n string) (string, error) {
	if st.nFunc == "" {
		return "", errors.New("oplist: no n function extracted")
	}
	return evalJSFunction(st.nFunc, n)
}

const (
	jsVarStr   = "[a-zA-Z_\\$][a-zA-Z_0-9]*"
	reverseStr = ":function\\(a\\)\\{" +
		"(?:return )?a\\.reverse\\(\\)" +
		"\\}"
	spliceStr = ":function\\(a,b\\)\\{" +
		"a\\.splice\\(0,b\\)" +
		"\\}"
	swapStr = ":function\\(a,b\\)\\{" +
		"var c=a\\[0\\];a\\[0\\]=a\\[b(?:%a\\.length)?\\];a\\[b(?:%a\\.length)?\\]=c(?:;return a)?" +
		"\\}"
)

var (
	nFunctionNameRegexps = []*regexp.Regexp{
		// b=XY[0](b)||ZZ with literal index
		regexp.MustCompile(`\.get\("n"\)\)&&\(b=([a-zA-Z0-9$]{0,3})\[(\d+)\](.+)\|\|([a-zA-Z0-9]{0,3})`),
		regexp.MustCompile(`\.get\("n"\)\)\s*&&\s*\(b=([a-zA-Z0-9$]{1,})\[(\d+)\]\([a-zA-Z0-9$]{1,}\).+\|\|([a-zA-Z0-9$]{1,})`),
		// direct call: b=XY(b)
		regexp.MustCompile(`\.get\("n"\)\)\s*&&\s*\(b=([a-zA-Z0-9$]{1,})\([a-zA-Z0-9$]{1,}\)`),
		regexp.MustCompile(`\.get\("n"\).*?&&.*?([a-zA-Z0-9$]{1,})\([a-zA-Z0-9$]{1,}\)`),
	}
	transformObjRegexp = regexp.MustCompile(fmt.Sprintf(
		"(?:var|let|const)\\s+(%s)=\\{((?:(?:%s%s|%s%s|%s%s),?\\n?)+)\\}\\s*;?",
		jsVarStr, jsVarStr, swapStr, jsVarStr, spliceStr, jsVarStr, reverseStr))
	reverseRegexp        = regexp.MustCompile(fmt.Sprintf("(?m)(?:^|,)(%s)%s", jsVarStr, reverseStr))
	spliceRegexp         = regexp.MustCompile(fmt.Sprintf("(?m)(?:^|,)(%s)%s", jsVarStr, spliceStr))
	swapRegexp           = regexp.MustCompile(fmt.Sprintf("(?m)(?:^|,)(%s)%s", jsVarStr, swapStr))
	transformFuncRegexps = []*regexp.Regexp{
		// function XX(a){...}
		regexp.MustCompile(fmt.Sprintf(
			"function(?:\\s+%s)?\\(a\\)\\{"+
				"a=a\\.split\\([^\\)]*\\);\\s*"+
				"((?:(?:a=)?%s(?:\\.%s|\\[[^\\]]+\\])\\(a,\\d+\\);?\\s*)+)"+
				"return a\\.join\\([^\\)]*\\)"+
				"\\}", jsVarStr, jsVarStr, jsVarStr)),
		// XX=function(a){...}
		regexp.MustCompile(fmt.Sprintf(
			"%s\\s*=\\s*function\\(a\\)\\{"+
				"a=a\\.split\\([^\\)]*\\);\\s*"+
				"((?:(?:a=)?%s(?:\\.%s|\\[[^\\]]+\\])\\(a,\\d+\\);?\\s*)+)"+
				"return a\\.join\\([^\\)]*\\)"+
				"\\}", jsVarStr, jsVarStr, jsVarStr)),
	}
)

func parseSignatureOps(jsBody []byte) ([]transformOp, error) {
	objResult := transformObjRegexp.FindSubmatch(jsBody)
	funcBody := findTransformFuncBody(jsBody)
	if len(objResult) < 3 || len(funcBody) == 0 {
		return nil, fmt.Errorf("error parsing signature tokens (#obj=%d, #func=%d)", len(objResult), len(funcBody))
	}

	obj := objResult[1]
	objBody := objResult[2]

	var reverseKey, spliceKey, swapKey string
	if result := reverseRegexp.FindSubmatch(objBody); len(result) > 1 {
		reverseKey = string(result[1])
	}
	if result := spliceRegexp.FindSubmatch(objBody); len(result) > 1 {
		spliceKey = string(result[1])
	}
	if result := swapRegexp.FindSubmatch(objBody); len(result) > 1 {
		swapKey = string(result[1])
	}

	regex, err := regexp.Compile(fmt.Sprintf(
		"(?:a=)?%s(?:\\.(%s|%s|%s)|\\[(?:\"(%s|%s|%s)\"|'(%s|%s|%s)')\\])\\(a,(\\d+)\\)",
		regexp.QuoteMeta(string(obj)),
		regexp.QuoteMeta(reverseKey),
		regexp.QuoteMeta(spliceKey),
		regexp.QuoteMeta(swapKey),
		regexp.QuoteMeta(reverseKey),
		regexp.QuoteMeta(spliceKey),
		regexp.QuoteMeta(swapKey),
		regexp.QuoteMeta(reverseKey),
		regexp.QuoteMeta(spliceKey),
		regexp.QuoteMeta(swapKey),
	))
	if err != nil {
		return nil, err
	}

	var ops []transformOp
	for _, s := range regex.FindAllSubmatch(funcBody, -1) {
		if len(s) < 5 {
			continue
		}
		key := firstNonEmptySubmatch(s[1], s[2], s[3])
		arg, _ := strconv.Atoi(string(s[4]))
		switch key {
		case reverseKey:
			ops = append(ops, reverseOp)
		case swapKey:
			ops = append(ops, newSwapOp(arg))
		case spliceKey:
			ops = append(ops, newSpliceOp(arg))
		}
	}
	if len(ops) == 0 {
		return nil, errors.New("error parsing signature operations (empty op list)")
	}
	return ops, nil
}

func findTransformFuncBody(jsBody []byte) []byte {
	for _, re := range transformFuncRegexps {
		if m := re.FindSubmatch(jsBody); len(m) > 1 {
			return m[1]
		}
	}
	return nil
}

func extractNFunction(jsBody []byte) (string, error) {
	for _, re := range nFunctionNameRegexps {
		nameResult := re.FindSubmatch(jsBody)
		if len(nameResult) == 0 {
			continue
		}

		switch len(nameResult) {
		case 5:
			// Indexed pattern with explicit fallback symbol in group 4.
			if idx, err := strconv.Atoi(string(nameResult[2])); err == nil && idx == 0 {
				return extractFunctionBody(jsBody, string(nameResult[4]))
			}
			return extractFunctionBody(jsBody, string(nameResult[1]))
		case 4:
			if idx, err := strconv.Atoi(string(nameResult[2])); err == nil && idx == 0 {
				return extractFunctionBody(jsBody, string(nameResult[3]))
			}
			return extractFunctionBody(jsBody, string(nameResult[1]))
		default:
			return extractFunctionBody(jsBody, string(nameResult[1]))
		}
	}
	return "", errors.New("unable to extract n-function name")
}

// extractFunctionBody walks braces from the named function's definition so
// nested object literals and string escapes do not truncate the extraction.
func extractFunctionBody(jsBody []byte, name string) (string, error) {
	name = strings.TrimSpace(name)
	defPatterns := [][]byte{
		[]byte(name + "=function("),
		[]byte(name + " = function("),
		[]byte("function " + name + "("),
	}
	start := -1
	for _, def := range defPatterns {
		start = bytes.Index(jsBody, def)
		if start >= 0 {
			break
		}
	}
	if start < 0 {
		return "", fmt.Errorf("unable to extract n-function body")
	}

	pos := start + bytes.IndexByte(jsBody[start:], '{') + 1
	var strChar byte
	for brackets := 1; brackets > 0; pos++ {
		if pos >= len(jsBody) {
			return "", fmt.Errorf("unterminated n-function body")
		}
		b := jsBody[pos]
		switch b {
		case '{':
			if strChar == 0 {
				brackets++
			}
		case '}':
			if strChar == 0 {
				brackets--
			}
		case '`', '"', '\'':
			if pos > 1 && jsBody[pos-1] == '\\' && jsBody[pos-2] != '\\' {
				continue
			}
			if strChar == 0 {
				strChar = b
			} else if strChar == b {
				strChar = 0
			}
		}
	}
	return string(jsBody[start:pos]), nil
}

func firstNonEmptySubmatch(groups ...[]byte) string {
	for _, g := range groups {
		if len(g) > 0 {
			return string(g)
		}
	}
	return ""
}

func evalJSFunction(jsFunction, arg string) (string, error) {
	const fnName = "grabThrottleFn"
	vm := goja.New()
	if _, err := vm.RunString(fnName + "=" + jsFunction); err != nil {
		return "", err
	}
	var output func(string) string
	if err := vm.ExportTo(vm.Get(fnName), &output); err != nil {
		return "", err
	}
	return output(arg), nil
}
