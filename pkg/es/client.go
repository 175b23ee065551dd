// Package es 提供了与 Elasticsearch 交互的客户端初始化功能。
//
// 每个向量集合对应一个独立的索引，索引的创建/删除由上层仓库按需完成，
// 这里只负责建立连接。
package es

import (
	"crypto/tls"
	"net/http"

	"docurag-go/internal/config"
	"docurag-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
)

var ESClient *elasticsearch.Client

// InitES 初始化 Elasticsearch 客户端并验证连通性。
func InitES(esCfg config.ElasticsearchConfig) error {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}

	res, err := client.Info()
	if err != nil {
		return err
	}
	defer res.Body.Close()

	ESClient = client
	log.Info("Elasticsearch 客户端初始化成功")
	return nil
}
