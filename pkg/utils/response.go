package utils

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

// RespondError 发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}

// WantsJSON 判断请求方是否期望JSON（脚本发起的请求）而不是整页跳转
func WantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// Finish 结束一次表单提交：脚本请求返回JSON，普通表单303跳回来源页
func Finish(w http.ResponseWriter, r *http.Request, status int, payload interface{}) {
	if WantsJSON(r) {
		RespondJSON(w, status, payload)
		return
	}
	http.Redirect(w, r, backTo(r), http.StatusSeeOther)
}

// Fail 与 Finish 相同，但携带错误信息
func Fail(w http.ResponseWriter, r *http.Request, status int, message string) {
	if WantsJSON(r) {
		RespondError(w, status, message)
		return
	}
	http.Redirect(w, r, backTo(r), http.StatusSeeOther)
}

// backTo 只允许跳回本站路径
func backTo(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || (ref.Host != "" && ref.Host != r.Host) {
		return "/"
	}
	if ref.RawQuery != "" {
		return ref.Path + "?" + ref.RawQuery
	}
	return ref.Path
}
