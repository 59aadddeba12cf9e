package visibility

import (
	"encoding/json"
	"fmt"
	"strings"
)

type graphQLRequest struct {
	Query string `json:"query"`
}

type graphQLResponse struct {
	Data *struct {
		Organization *struct {
			Packages struct {
				Nodes []packageNode `json:"nodes"`
			} `json:"packages"`
		} `json:"organization"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type packageNode struct {
	Repository *struct {
		IsPrivate bool `json:"isPrivate"`
	} `json:"repository"`
}

func (r graphQLResponse) errorMessages() string {
	if len(r.Errors) == 0 {
		return "none"
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// packagesQuery 构造按包名查询组织内包及其关联仓库可见性的 GraphQL 语句。
// 名称通过 JSON 编码嵌入，避免注入。
func packagesQuery(organization, packageName string) string {
	org, _ := json.Marshal(organization)
	name, _ := json.Marshal(packageName)
	return fmt.Sprintf(`query {
  organization(login: %s) {
    packages(first: 1, names: [%s]) {
      nodes {
        repository {
          isPrivate
        }
      }
    }
  }
}`, org, name)
}
