package response

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"
)

// BuildBodyStructure renders the BODYSTRUCTURE (or non-extensible BODY)
// structure for rawMsg, recursing into multipart parts per RFC 3501
// §7.4.2.
func BuildBodyStructure(rawMsg string) string {
	return buildPartStructure(rawMsg, true)
}

// buildPartStructure builds one part's structure. With top set, a
// non-multipart part carries only its basic fields (plus the line count for
// TEXT); multipart children (top false) also carry the extension fields
// MD5 (NIL), disposition and language (NIL).
func buildPartStructure(msg string, top bool) string {
	h := parseHeader(msg)
	contentType := h.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain; charset=us-ascii"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, params = "text/plain", map[string]string{"charset": "us-ascii"}
	}

	typeParts := strings.SplitN(mediaType, "/", 2)
	mainType, subType := "TEXT", "PLAIN"
	if len(typeParts) == 2 {
		mainType, subType = strings.ToUpper(typeParts[0]), strings.ToUpper(typeParts[1])
	}

	if strings.EqualFold(mainType, "MULTIPART") {
		if boundary := params["boundary"]; boundary != "" {
			if parts := splitMultipart(MessageBody(msg), boundary); len(parts) > 0 {
				children := make([]string, len(parts))
				for i, p := range parts {
					children[i] = buildPartStructure(p, false)
				}
				return fmt.Sprintf("(%s %s)", strings.Join(children, ""), QuoteOrNIL(subType))
			}
		}
		return fmt.Sprintf("(%s %s NIL NIL NIL)", QuoteOrNIL(mainType), QuoteOrNIL(subType))
	}

	body := MessageBody(msg)
	encoding := h.Get("Content-Transfer-Encoding")
	if encoding == "" {
		encoding = "7BIT"
	}
	encoding = strings.ToUpper(encoding)

	paramList := buildParamList(params)
	contentID := h.Get("Content-Id")
	contentDesc := h.Get("Content-Description")

	basic := fmt.Sprintf("%s %s %s %s %s %s %d",
		QuoteOrNIL(mainType), QuoteOrNIL(subType), paramList,
		QuoteOrNIL(contentID), QuoteOrNIL(contentDesc), QuoteOrNIL(encoding), len(body))

	if mainType == "TEXT" {
		lines := strings.Count(body, "\n")
		if top {
			return fmt.Sprintf("(%s %d)", basic, lines)
		}
		dispList := dispositionList(h)
		return fmt.Sprintf("(%s %d NIL %s NIL)", basic, lines, dispList)
	}

	if top {
		return fmt.Sprintf("(%s)", basic)
	}
	return fmt.Sprintf("(%s NIL %s NIL)", basic, dispositionList(h))
}

func dispositionList(h header) string {
	disposition := h.Get("Content-Disposition")
	if disposition == "" {
		return "NIL"
	}
	dispType, dispParams, err := mime.ParseMediaType(disposition)
	if err != nil {
		return "NIL"
	}
	return fmt.Sprintf("(%s %s)", QuoteOrNIL(strings.ToUpper(dispType)), buildParamList(dispParams))
}

func buildParamList(params map[string]string) string {
	if len(params) == 0 {
		return "NIL"
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, QuoteOrNIL(strings.ToUpper(k)), QuoteOrNIL(v))
	}
	return "(" + strings.Join(pairs, " ") + ")"
}

// splitMultipart returns each part's raw bytes (headers + body), using
// mime/multipart.Reader.
func splitMultipart(body, boundary string) []string {
	if !strings.Contains(body, "\r\n") {
		body = strings.ReplaceAll(body, "\n", "\r\n")
	}
	mr := multipart.NewReader(strings.NewReader(body), boundary)
	var parts []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		content, err := io.ReadAll(p)
		if err != nil {
			continue
		}
		var hdr strings.Builder
		for key, values := range p.Header {
			for _, v := range values {
				hdr.WriteString(key)
				hdr.WriteString(": ")
				hdr.WriteString(v)
				hdr.WriteString("\r\n")
			}
		}
		hdr.WriteString("\r\n")
		parts = append(parts, hdr.String()+string(content))
	}
	return parts
}
