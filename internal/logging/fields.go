package logging

import "github.com/sirupsen/logrus"

// ServiceName 是日志中的服务标识。
const ServiceName = "maven-mirror"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供 repo/path/模式/命中状态字段，供代理请求日志复用。
func RequestFields(repo, path, mode string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"repo":      repo,
		"path":      path,
		"mode":      mode,
		"cache_hit": cacheHit,
	}
}

// ServiceFields 返回每条日志都携带的实例标识：服务名、上游组织与允许的根命名空间。
func ServiceFields(organization, rootNamespace string) logrus.Fields {
	return logrus.Fields{
		"service":        ServiceName,
		"organization":   organization,
		"root_namespace": rootNamespace,
	}
}
