package sqlinline

const QSelectProfile = `--sql cb540537-cd6c-45dc-a5a1-7092515c23cb
select id, credits, created_at
from profiles
where id = $1::text
limit 1;
`

const QEnsureProfile = `--sql 7d1df769-dc53-484e-ac1a-0f21ac1cd044
insert into profiles (id, credits, created_at)
values ($1::text, $2::int, now())
on conflict (id) do update set id = excluded.id
returning id, credits, created_at;
`
