package odds

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PoolCache mantém no Redis os pools de stake pendente por corrida, usados
// pelas odds pari-mutuel de exibição. Cache puro: a fonte de verdade é o
// banco, então falha de Redis degrada para a odd baseline, nunca bloqueia.
type PoolCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewPoolCache(c *redis.Client, ttl time.Duration) *PoolCache {
	return &PoolCache{Client: c, TTL: ttl}
}

func driverKey(raceID string, driverNumber int) string {
	return fmt.Sprintf("pool:%s:driver:%d", raceID, driverNumber)
}

func totalKey(raceID string) string { return fmt.Sprintf("pool:%s:total", raceID) }

// Add incrementa o pool do piloto e o pool total da corrida.
func (p *PoolCache) Add(ctx context.Context, raceID string, driverNumber int, stake int64) error {
	pipe := p.Client.TxPipeline()
	pipe.IncrBy(ctx, driverKey(raceID, driverNumber), stake)
	pipe.Expire(ctx, driverKey(raceID, driverNumber), p.TTL)
	pipe.IncrBy(ctx, totalKey(raceID), stake)
	pipe.Expire(ctx, totalKey(raceID), p.TTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Remove desfaz o stake de uma aposta cancelada.
func (p *PoolCache) Remove(ctx context.Context, raceID string, driverNumber int, stake int64) error {
	pipe := p.Client.TxPipeline()
	pipe.DecrBy(ctx, driverKey(raceID, driverNumber), stake)
	pipe.DecrBy(ctx, totalKey(raceID), stake)
	_, err := pipe.Exec(ctx)
	return err
}

// Purge apaga todos os pools de uma corrida. Chamado quando a corrida é
// liquidada: odds ao vivo deixam de existir para mercado fechado.
func (p *PoolCache) Purge(ctx context.Context, raceID string) error {
	iter := p.Client.Scan(ctx, 0, fmt.Sprintf("pool:%s:*", raceID), 100).Iterator()
	for iter.Next(ctx) {
		if err := p.Client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Pools retorna (stake no piloto, stake total) da corrida. Chave ausente vale zero.
func (p *PoolCache) Pools(ctx context.Context, raceID string, driverNumber int) (int64, int64, error) {
	vals, err := p.Client.MGet(ctx, driverKey(raceID, driverNumber), totalKey(raceID)).Result()
	if err != nil {
		return 0, 0, err
	}
	return asInt64(vals[0]), asInt64(vals[1]), nil
}

func asInt64(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	var n int64
	_, _ = fmt.Sscan(s, &n)
	return n
}
