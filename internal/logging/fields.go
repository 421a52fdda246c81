package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action 基础字段，便于不同入口复用。
func BaseFields(action string) logrus.Fields {
	return logrus.Fields{
		"action": action,
	}
}

// RequestFields 提供 method/path/request id 字段，供请求错误日志复用。
// 正常请求不打日志（访问日志不属于本服务的职责），仅异常路径会带上这些字段。
func RequestFields(method, path, requestID string) logrus.Fields {
	fields := logrus.Fields{
		"method": method,
		"path":   path,
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}
