package storage

import "storefront/internal/config"

func configForTest() config.S3Config {
	return config.S3Config{
		Bucket:          "shop",
		Region:          "us-east-1",
		Prefix:          "images/",
		Endpoint:        "http://127.0.0.1:9000/",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		UsePathStyle:    true,
	}
}
