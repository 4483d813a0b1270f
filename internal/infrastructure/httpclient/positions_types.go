package httpclient

type (
	positionsResponse struct {
		Links positionsLinks `json:"links"`
		Data  []positionData `json:"data"`
	}

	positionsLinks struct {
		Self string `json:"self"`
		Next string `json:"next"`
	}

	positionData struct {
		Type          string                `json:"type"`
		ID            string                `json:"id"`
		Attributes    positionAttributes    `json:"attributes"`
		Relationships positionRelationships `json:"relationships"`
	}

	positionAttributes struct {
		Name                string               `json:"name"`
		PositionType        string               `json:"position_type"`
		Protocol            string               `json:"protocol"`
		ProtocolModule      string               `json:"protocol_module"`
		GroupID             string               `json:"group_id"`
		PoolAddress         string               `json:"pool_address"`
		Market              string               `json:"market"`
		Quantity            quantity             `json:"quantity"`
		Value               *float64             `json:"value"`
		Price               *float64             `json:"price"`
		HealthFactor        *float64             `json:"health_factor"`
		NetAPY              *float64             `json:"net_apy"`
		FungibleInfo        fungibleInfo         `json:"fungible_info"`
		ApplicationMetadata *applicationMetadata `json:"application_metadata"`
	}

	quantity struct {
		Int      string  `json:"int"`
		Decimals uint8   `json:"decimals"`
		Float    float64 `json:"float"`
		Numeric  string  `json:"numeric"`
	}

	fungibleImplementation struct {
		ChainID  string `json:"chain_id"`
		Address  string `json:"address"`
		Decimals uint8  `json:"decimals"`
	}

	fungibleInfo struct {
		Name            string                   `json:"name"`
		Symbol          string                   `json:"symbol"`
		Implementations []fungibleImplementation `json:"implementations"`
	}

	applicationMetadata struct {
		Name string `json:"name"`
	}

	positionRelationships struct {
		Chain    relationship `json:"chain"`
		Fungible relationship `json:"fungible"`
	}

	relationship struct {
		Data struct {
			Type string `json:"type"`
			ID   string `json:"id"`
		} `json:"data"`
	}
)
