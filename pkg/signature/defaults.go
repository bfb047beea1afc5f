package signature

// Defaults returns the built-in signature set used when no signature file is
// configured. It covers base64-encoded injection probes, path traversal,
// common SQL/XSS keywords and well-known scanner fingerprints.
func Defaults() []Signature {
	return []Signature{
		// Base64 fragments of common injection payloads.
		{ID: "b64-script-prefix", Pattern: "PHNjc", Kind: KindExact, Description: "base64 '<scr'"},
		{ID: "b64-attr-assign", Pattern: "ID0i", Kind: KindExact, Description: "base64 '=\"'"},
		{ID: "b64-select", Pattern: "U0VMRUNU", Kind: KindExact, Description: "base64 'SELECT'"},
		{ID: "b64-distinct", Pattern: "RElTVElOQ1Q", Kind: KindExact, Description: "base64 'DISTINCT'"},
		{ID: "b64-script-tag", Pattern: "PHNjcmlwdD", Kind: KindExact, Description: "base64 '<script'"},
		{ID: "trinity-scanner", Pattern: "Trinity", Kind: KindExact, Description: "Trinity scanner banner"},

		{ID: "path-traversal", Pattern: "../", Kind: KindCaseInsensitive, Description: "relative path traversal"},
		{ID: "path-traversal-win", Pattern: "..\\", Kind: KindCaseInsensitive, Description: "windows path traversal"},
		{ID: "path-traversal-enc", Pattern: "..%2F..%2F", Kind: KindCaseInsensitive, Description: "url-encoded traversal"},
		{ID: "php-tag", Pattern: "<?PHP", Kind: KindCaseInsensitive, Description: "inline php"},
		{ID: "chmod", Pattern: "CHMOD", Kind: KindCaseInsensitive, Description: "permission change attempt"},
		{ID: "cat-etc", Pattern: "CAT /ETC", Kind: KindCaseInsensitive, Description: "system file read"},
		{ID: "sql-select", Pattern: "SELECT", Kind: KindCaseInsensitive, Description: "sql keyword"},
		{ID: "sql-drop", Pattern: "DROP", Kind: KindCaseInsensitive, Description: "sql keyword"},
		{ID: "sql-or", Pattern: "OR", Kind: KindCaseInsensitive, Description: "sql boolean probe"},
		{ID: "admin-probe", Pattern: "ADMIN", Kind: KindCaseInsensitive, Description: "admin account probe"},
		{ID: "password-probe", Pattern: "PASSWORD", Kind: KindCaseInsensitive, Description: "credential probe"},
		{ID: "etc-passwd", Pattern: "ETC/PASSWD", Kind: KindCaseInsensitive, Description: "passwd file read"},
		{ID: "etc-passwd-rel", Pattern: "../etc/passwd", Kind: KindCaseInsensitive, Description: "passwd traversal"},
		{ID: "etc-shadow-rel", Pattern: "../etc/shadow", Kind: KindCaseInsensitive, Description: "shadow traversal"},
		{ID: "etc-hosts-rel", Pattern: "../etc/hosts", Kind: KindCaseInsensitive, Description: "hosts traversal"},
		{ID: "script-keyword", Pattern: "SCRIPT", Kind: KindCaseInsensitive, Description: "script injection keyword"},
		{ID: "alert-call", Pattern: "ALERT(", Kind: KindCaseInsensitive, Description: "xss alert call"},

		{ID: "nmap", Pattern: "NMAP", Kind: KindCaseInsensitive, Description: "nmap scanner"},
		{ID: "nmap-nse", Pattern: "NSE/", Kind: KindCaseInsensitive, Description: "nmap scripting engine"},
		{ID: "hnap", Pattern: "HNAP1", Kind: KindCaseInsensitive, Description: "HNAP router probe"},
		{ID: "nessus", Pattern: "NESSUS", Kind: KindCaseInsensitive, Description: "nessus scanner"},
		{ID: "zgrab", Pattern: "ZGRAB", Kind: KindCaseInsensitive, Description: "zgrab banner scanner"},
		{ID: "censys", Pattern: "CENSYS", Kind: KindCaseInsensitive, Description: "censys internet scanner"},
	}
}

// DefaultErrorCodes returns the HTTP status substrings treated as suspicious
// when no error_codes list is configured.
func DefaultErrorCodes() []string {
	return []string{"403", "500", "502", "503", "504"}
}
